// Package pipeline runs break generation followed by site assignment and
// reports the outcome to metrics sinks and the audit store.
package pipeline
