// Package tilematrixset derives WMTS 1.0.0 tile matrix sets for the GoogleMapsCompatible
// (spherical Mercator) tiling scheme from zoom ranges.
// See https://www.ogc.org/standard/wmts/
package tilematrixset

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/xyz2wmts/mapslicehelp"
	"github.com/pdok/xyz2wmts/mathhelp"
	"github.com/pdok/xyz2wmts/mercator"
)

const (
	// SupportedCRS is the CRS of every derived tile matrix set
	SupportedCRS = "urn:ogc:def:crs:EPSG:6.18.3:3857"
	// DefaultTileSize is the width and height of a tile in pixels
	DefaultTileSize = 256

	scaleDenominatorDecimals = 12
	cornerDecimals           = 8
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ZoomRange is an inclusive range of zoom levels
type ZoomRange struct {
	Min uint
	Max uint
}

// ID is the identifier of the tile matrix set covering this range
func (zr ZoomRange) ID() string {
	return fmt.Sprintf("z%dto%d", zr.Min, zr.Max)
}

// TileMatrixSet is a WMTS tile matrix set
type TileMatrixSet struct {
	ID           string `validate:"required"`
	SupportedCRS string `validate:"required"`
	// One tile matrix per zoom level, in ascending order
	TileMatrices []TileMatrix `validate:"required,min=1,dive"`
}

// TileMatrix is a WMTS tile matrix, corresponding to one zoom level
type TileMatrix struct {
	// Identifier, the zoom level as a string
	ID               string  `validate:"required"`
	Zoom             uint
	ScaleDenominator float64 `validate:"required,gt=0"`
	// The top left corner of the tile matrix, the same for every zoom level
	TopLeftCorner geom.Point
	TileWidth     uint `validate:"required,min=1"`
	TileHeight    uint `validate:"required,min=1"`
	MatrixWidth   uint `validate:"required,min=1"`
	MatrixHeight  uint `validate:"required,min=1"`
}

// Derive creates the tile matrix set for a zoom range
func Derive(zr ZoomRange, tileSize uint) (TileMatrixSet, error) {
	tms := TileMatrixSet{ID: zr.ID(), SupportedCRS: SupportedCRS}
	if zr.Min > zr.Max {
		return tms, fmt.Errorf("invalid zoom range %s: min zoom is larger than max zoom", zr.ID())
	}
	tms.TileMatrices = make([]TileMatrix, 0, zr.Max-zr.Min+1)
	for zoom := zr.Min; zoom <= zr.Max; zoom++ {
		matrixSize := mathhelp.Pow2(zoom)
		tms.TileMatrices = append(tms.TileMatrices, TileMatrix{
			ID:               strconv.FormatUint(uint64(zoom), 10),
			Zoom:             zoom,
			ScaleDenominator: mercator.ScaleDenominator(zoom),
			TopLeftCorner:    mercator.TopLeftCorner(),
			TileWidth:        tileSize,
			TileHeight:       tileSize,
			MatrixWidth:      matrixSize,
			MatrixHeight:     matrixSize,
		})
	}
	if err := validate.Struct(&tms); err != nil {
		return tms, fmt.Errorf("invalid tile matrix set %s: %w", tms.ID, err)
	}
	return tms, nil
}

// Registry collects the distinct zoom ranges of the layers of one document, in order of appearance
type Registry struct {
	ranges *orderedmap.OrderedMap[string, ZoomRange]
}

func NewRegistry() *Registry {
	return &Registry{ranges: orderedmap.New[string, ZoomRange]()}
}

// Register adds the zoom range unless it is already known and returns its tile matrix set ID
func (r *Registry) Register(zr ZoomRange) string {
	id := zr.ID()
	mapslicehelp.SetIfAbsent(r.ranges, id, zr)
	return id
}

// IDs returns the registered tile matrix set IDs in order of registration
func (r *Registry) IDs() []string {
	return mapslicehelp.OrderedMapKeys(r.ranges)
}

func (r *Registry) Len() int {
	return r.ranges.Len()
}

// Derive creates the tile matrix sets for all registered zoom ranges, in order of registration
func (r *Registry) Derive(tileSize uint) ([]TileMatrixSet, error) {
	sets := make([]TileMatrixSet, 0, r.ranges.Len())
	for p := r.ranges.Oldest(); p != nil; p = p.Next() {
		tms, err := Derive(p.Value, tileSize)
		if err != nil {
			return nil, err
		}
		sets = append(sets, tms)
	}
	return sets, nil
}

// FormatScaleDenominator formats a scale denominator with 12 decimals
func FormatScaleDenominator(scaleDenominator float64) string {
	return strconv.FormatFloat(scaleDenominator, 'f', scaleDenominatorDecimals, 64)
}

// FormatCorner formats a corner as "x y" with 8 decimals each
func FormatCorner(pt geom.Point) string {
	return strconv.FormatFloat(pt.X(), 'f', cornerDecimals, 64) + " " + strconv.FormatFloat(pt.Y(), 'f', cornerDecimals, 64)
}
