// Package otel bridges ledgerAuth counters and the verification latency
// histogram into OpenTelemetry observable instruments.
//
// The caller owns the MeterProvider and passes a Meter to [NewExporter]. The
// exporter only reads engine snapshots.
package otel
