// Package prometheus renders goRWT session metrics for Prometheus scraping.
//
// [NewPrometheusExporter] accepts a [goRWT.Engine] and exposes an [http.Handler]
// that writes every counter and latency histogram in text exposition format.
// Counter names are rwt_*_total, histograms are rwt_verify_latency_seconds and
// rwt_store_latency_seconds, and rwt_connected reports whether the engine holds
// a Redis client.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
