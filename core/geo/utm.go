package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kilianp07/hpcdemand/core/model"
)

// DefaultCRS is UTM zone 32N, the zone covering most of Germany.
const DefaultCRS = "EPSG:32632"

// ErrUnsupportedCRS is returned for CRS codes other than WGS84 UTM zones.
var ErrUnsupportedCRS = errors.New("unsupported projected crs")

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563

	utmK0       = 0.9996
	utmFalseE   = 500000.0
	utmFalseNS  = 10000000.0
	utmMaxZone  = 60
	utmZoneSize = 6.0
)

// UTM is a transverse Mercator projection for one WGS84 UTM zone.
type UTM struct {
	Zone  int
	South bool

	lon0  float64 // central meridian, radians
	n     float64
	bigA  float64
	alpha [3]float64
}

// ParseCRS builds the projection for an EPSG code of the form EPSG:326zz
// (north) or EPSG:327zz (south).
func ParseCRS(code string) (*UTM, error) {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.TrimPrefix(s, "EPSG:")
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCRS, code)
	}
	switch {
	case v > 32600 && v <= 32600+utmMaxZone:
		return NewUTM(v-32600, false)
	case v > 32700 && v <= 32700+utmMaxZone:
		return NewUTM(v-32700, true)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCRS, code)
	}
}

// NewUTM returns the projection for the given zone and hemisphere.
func NewUTM(zone int, south bool) (*UTM, error) {
	if zone < 1 || zone > utmMaxZone {
		return nil, fmt.Errorf("%w: zone %d", ErrUnsupportedCRS, zone)
	}
	n := wgs84F / (2 - wgs84F)
	n2, n3 := n*n, n*n*n
	u := &UTM{
		Zone:  zone,
		South: south,
		lon0:  degToRad(float64(zone-1)*utmZoneSize - 180 + utmZoneSize/2),
		n:     n,
		bigA:  wgs84A / (1 + n) * (1 + n2/4 + n2*n2/64),
		alpha: [3]float64{
			n/2 - 2*n2/3 + 5*n3/16,
			13*n2/48 - 3*n3/5,
			61 * n3 / 240,
		},
	}
	return u, nil
}

// Code returns the EPSG code of the projection.
func (u *UTM) Code() string {
	base := 32600
	if u.South {
		base = 32700
	}
	return fmt.Sprintf("EPSG:%d", base+u.Zone)
}

// Project returns easting (X) and northing (Y) in metres. Uses the Krüger
// series to third order, accurate to well below a metre inside the zone.
func (u *UTM) Project(c model.Coordinate) r2.Vec {
	phi := degToRad(c.Lat)
	dl := degToRad(c.Lon) - u.lon0

	k := 2 * math.Sqrt(u.n) / (1 + u.n)
	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - k*math.Atanh(k*sinPhi))
	xi := math.Atan2(t, math.Cos(dl))
	eta := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))

	e, nn := eta, xi
	for j, a := range u.alpha {
		m := 2 * float64(j+1)
		e += a * math.Cos(m*xi) * math.Sinh(m*eta)
		nn += a * math.Sin(m*xi) * math.Cosh(m*eta)
	}
	v := r2.Vec{
		X: utmFalseE + utmK0*u.bigA*e,
		Y: utmK0 * u.bigA * nn,
	}
	if u.South {
		v.Y += utmFalseNS
	}
	return v
}

// Distance is the planar distance between two projected points in metres.
func Distance(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
