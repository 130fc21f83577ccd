// Package otel publishes goRWT session metrics through OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter,
// one Int64ObservableGauge per histogram bucket, and an rwt_connected gauge.
// A single callback reads [goRWT.Engine.MetricsSnapshot] on each collection
// cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
