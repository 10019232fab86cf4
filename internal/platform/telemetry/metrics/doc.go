// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Latency: request duration histograms by route
//   - Usage: request counts by route, method and status code
//   - Connections: open chat WebSocket connections
//   - Domain: dice rolls evaluated, by surface
//
// # Integration
//
// Collectors are registered on a dedicated Prometheus registry and exposed
// by Handler. HTTP services wrap their mux with Middleware.
package metrics
