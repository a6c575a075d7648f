// Package telemetry wires OpenTelemetry into the driver: a stdout span
// exporter for ad-hoc tracing, a write-once runtime version gauge, and
// run identifiers.
package telemetry
