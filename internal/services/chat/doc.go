// Package chat implements the chat relay for campaign and ad-hoc chats.
//
// The domain subpackage owns chat and message rules. The app subpackage hosts
// the WebSocket transport that persists messages through the shared store and
// fans them out to every connection subscribed to the chat group.
package chat
