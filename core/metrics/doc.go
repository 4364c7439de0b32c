// Package metrics defines the observability hooks of an estimation run.
// Sinks like PromSink and InfluxSink record break generation summaries,
// assignment outcomes and final site loads, and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured. Optional capabilities are separate
// interfaces checked with a type assertion.
package metrics
