// Package geo holds coordinate validation, distances and place identity.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gosimple/slug"
)

// ErrInvalidCoordinates is returned for points outside the WGS84 range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

const earthRadiusMeters = 6371000

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Validate checks the point lies within latitude [-90, 90] and longitude [-180, 180].
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) ||
		p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// GridCell snaps a point to the south-west corner of its cell of the given
// size in degrees and returns a stable key. Points in one cell share a key.
func GridCell(p Point, size float64) string {
	if size <= 0 {
		size = 0.1
	}
	lat := math.Floor(p.Lat/size) * size
	lon := math.Floor(p.Lon/size) * size
	return fmt.Sprintf("%.2f:%.2f", lat, lon)
}

// Place is the resolved identity of a coordinate.
type Place struct {
	Name        string
	CountryCode string
}

// ID returns a URL-safe identifier for the place at p. Named places use the
// slugged name and country; unnamed places fall back to the coordinates.
func (pl Place) ID(p Point) string {
	parts := make([]string, 0, 2)
	if pl.Name != "" {
		parts = append(parts, pl.Name)
	}
	if pl.CountryCode != "" {
		parts = append(parts, pl.CountryCode)
	}
	if len(parts) == 0 {
		parts = append(parts, hemisphere(p.Lat, "n", "s"), hemisphere(p.Lon, "e", "w"))
	}
	return slug.Make(strings.Join(parts, " "))
}

func hemisphere(v float64, pos, neg string) string {
	if v < 0 {
		return fmt.Sprintf("%.4f%s", -v, neg)
	}
	return fmt.Sprintf("%.4f%s", v, pos)
}

// AllowList is a set of ISO 3166-1 alpha-2 country codes.
type AllowList map[string]struct{}

// NewAllowList builds an allow-list from codes, ignoring case and blanks.
func NewAllowList(codes ...string) AllowList {
	al := make(AllowList, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			al[c] = struct{}{}
		}
	}
	return al
}

// Allows reports whether code is on the list.
func (al AllowList) Allows(code string) bool {
	_, ok := al[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}
