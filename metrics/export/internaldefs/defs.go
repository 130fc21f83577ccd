package internaldefs

import (
	goRWT "github.com/MrEthical07/goRWT"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goRWT.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   goRWT.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goRWT.MetricSignSuccess, Name: "rwt_sign_success_total", Help: "Sessions created by Sign."},
	{ID: goRWT.MetricSignFailure, Name: "rwt_sign_failure_total", Help: "Sign calls that were rejected or failed."},
	{ID: goRWT.MetricVerifyHit, Name: "rwt_verify_hit_total", Help: "Verify calls that found a live session."},
	{ID: goRWT.MetricVerifyMiss, Name: "rwt_verify_miss_total", Help: "Verify calls that found no session."},
	{ID: goRWT.MetricVerifyFailure, Name: "rwt_verify_failure_total", Help: "Verify calls that failed in the store."},
	{ID: goRWT.MetricVerifyRateLimited, Name: "rwt_verify_rate_limited_total", Help: "Verify calls refused by the verify throttle."},
	{ID: goRWT.MetricVerifyExtended, Name: "rwt_verify_extended_total", Help: "Session TTL resets performed by Verify."},
	{ID: goRWT.MetricVerifyExtendFailure, Name: "rwt_verify_extend_failure_total", Help: "Session TTL resets during Verify that failed."},
	{ID: goRWT.MetricExtendSuccess, Name: "rwt_extend_success_total", Help: "Extend calls that reset a live session."},
	{ID: goRWT.MetricExtendMissing, Name: "rwt_extend_missing_total", Help: "Extend calls on sessions that no longer existed."},
	{ID: goRWT.MetricExtendFailure, Name: "rwt_extend_failure_total", Help: "Extend calls that failed in the store."},
	{ID: goRWT.MetricDestroySuccess, Name: "rwt_destroy_success_total", Help: "Destroy calls that removed a session."},
	{ID: goRWT.MetricDestroyMissing, Name: "rwt_destroy_missing_total", Help: "Destroy calls on sessions that no longer existed."},
	{ID: goRWT.MetricDestroyFailure, Name: "rwt_destroy_failure_total", Help: "Destroy calls that failed in the store."},
	{ID: goRWT.MetricInvalidArgument, Name: "rwt_invalid_argument_total", Help: "Calls rejected before reaching Redis."},
	{ID: goRWT.MetricConnect, Name: "rwt_connect_total", Help: "Redis clients opened."},
	{ID: goRWT.MetricDisconnect, Name: "rwt_disconnect_total", Help: "Redis clients closed by Disconnect."},
	{ID: goRWT.MetricDialFailure, Name: "rwt_dial_failure_total", Help: "Failed attempts to dial Redis."},
	{ID: goRWT.MetricStoreCommandFailure, Name: "rwt_store_command_failure_total", Help: "Redis commands and pipelines that returned an error."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goRWT.MetricVerifyLatency, Name: "rwt_verify_latency_seconds", Help: "Verify latency histogram."},
	{ID: goRWT.MetricStoreLatency, Name: "rwt_store_latency_seconds", Help: "Redis command latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's fixed
// latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument-name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

const (
	// AuditDroppedName is the counter of audit events lost to backpressure.
	AuditDroppedName = "rwt_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
	// ConnectedName is a 0/1 gauge reporting whether the engine holds a Redis client.
	ConnectedName = "rwt_connected"
	ConnectedHelp = "Whether the engine currently holds an open Redis client."
)

// NormalizeBuckets pads or truncates a snapshot histogram to the eight fixed
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
