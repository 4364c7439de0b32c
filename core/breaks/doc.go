// Package breaks synthesizes regulatory driving breaks and rest periods
// along truck trips.
//
// Each trip is walked as a small state machine tracking the distance driven
// since the last break and since the last long rest. A break is due every
// ShortBreakKm of driving; it becomes a long rest once the distance since
// the previous long rest reaches the crew specific multiple of that interval.
// Break points are interpolated on the network edges of the trip path.
package breaks
