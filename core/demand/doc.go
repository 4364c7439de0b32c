// Package demand turns per-site break loads into charging demand.
//
// Scale applies the market factors and spreads the annual figure over the
// week using the traffic profile of the nearest toll section. Cluster groups
// sites with similar weekly patterns into typical load profiles.
package demand
