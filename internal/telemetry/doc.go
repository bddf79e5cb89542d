// Package telemetry configures OpenTelemetry tracing for courier-gateway.
package telemetry
