// Package assign maps break events onto charging sites.
//
// Each event is projected to a metric CRS and compared against a fixed
// catchment radius around every site. A single covering site takes the
// event, several covering sites compete on their current load, and an
// event outside every catchment falls back to the nearest site. Loads are
// carried in a LoadTable so the fold is strictly ordered and resumable.
package assign
