// Package mercator converts between WGS84 degrees and spherical Mercator (EPSG:3857) meters
// and computes the OGC scale denominators of the GoogleMapsCompatible well-known scale set.
// See http://en.wikipedia.org/wiki/Mercator_projection
package mercator

import (
	"math"

	"github.com/go-spatial/geom"

	"github.com/pdok/xyz2wmts/mathhelp"
)

// These are variables, not constants, so that the products are computed with float64 arithmetic.
// The well-known scale set is defined in those terms and clients compare the values literally.
var (
	// EarthRadius is the radius of the Mercator sphere in meters
	EarthRadius = 6378137.0
	// OriginShift is half the width of the world in meters
	OriginShift = EarthRadius * math.Pi
)

const (
	// TileSize is the pixel width of a tile the scale set is defined for
	TileSize = 256
	// StandardizedPixelSize is the OGC "standardized rendering pixel size" of 0.28 mm
	StandardizedPixelSize = 0.00028
)

// DegreesToMeters projects lon/lat to x/y meters. lat must be within (-90, 90).
func DegreesToMeters(lon, lat float64) (x, y float64) {
	x = EarthRadius * lon * math.Pi / 180
	y = EarthRadius * math.Log(math.Tan((90+lat)*math.Pi/360))
	return x, y
}

// MetersToDegrees is the inverse of DegreesToMeters.
func MetersToDegrees(x, y float64) (lon, lat float64) {
	lon = x / EarthRadius * 180 / math.Pi
	lat = 360/math.Pi*math.Atan(math.Exp(y/EarthRadius)) - 90
	return lon, lat
}

// PixelSize returns the size in meters of one pixel at the given zoom level
func PixelSize(zoom uint) float64 {
	return 2 * OriginShift / TileSize / float64(mathhelp.Pow2(uint64(zoom)))
}

// ScaleDenominator returns the scale denominator at the given zoom level
func ScaleDenominator(zoom uint) float64 {
	return PixelSize(zoom) / StandardizedPixelSize
}

// WorldExtent is the full extent of the projection: [-OriginShift, -OriginShift, OriginShift, OriginShift]
func WorldExtent() geom.Extent {
	return geom.Extent{-OriginShift, -OriginShift, OriginShift, OriginShift}
}

// TopLeftCorner is the origin of every tile matrix in the scale set
func TopLeftCorner() geom.Point {
	return geom.Point{-OriginShift, OriginShift}
}

// ExtentToDegrees projects both corners of an extent in meters to degrees
func ExtentToDegrees(e geom.Extent) geom.Extent {
	minLon, minLat := MetersToDegrees(e.MinX(), e.MinY())
	maxLon, maxLat := MetersToDegrees(e.MaxX(), e.MaxY())
	return geom.Extent{minLon, minLat, maxLon, maxLat}
}

// ExtentToMeters projects both corners of an extent in degrees to meters
func ExtentToMeters(e geom.Extent) geom.Extent {
	minX, minY := DegreesToMeters(e.MinX(), e.MinY())
	maxX, maxY := DegreesToMeters(e.MaxX(), e.MaxY())
	return geom.Extent{minX, minY, maxX, maxY}
}
