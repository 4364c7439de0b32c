// Package geo projects WGS84 coordinates into a metric UTM plane and tests
// projected points against a country boundary. Distances used by the
// assignment stage are Euclidean distances in this plane, in metres.
package geo
