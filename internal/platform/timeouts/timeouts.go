// Package timeouts holds the timeout constants shared by the service binaries.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP or gRPC server waits for in-flight work
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WebSocketWrite caps a single frame write to a WebSocket peer.
const WebSocketWrite = 5 * time.Second

// DiscordRequest caps one Discord REST call issued by the bot.
const DiscordRequest = 10 * time.Second

// MailSend caps delivery of one outgoing email.
const MailSend = 15 * time.Second
