// Package telemetry groups the operational observability of the services.
//
// Tracing lives in platform/otel. Prometheus metrics live in
// telemetry/metrics and are served on /metrics by the HTTP services.
package telemetry
