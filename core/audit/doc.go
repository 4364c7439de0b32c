// Package audit persists the break to site mapping of a run together with
// load table checkpoints, so an interrupted assignment can be resumed and
// finished runs can be inspected per site or per trip.
package audit
