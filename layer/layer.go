// Package layer normalizes XYZ/TMS tile layer definitions.
//
// A layer is given either as a list of up to 8 positional values or as a map keyed by the
// same names (see Params). Both forms normalize to a Descriptor.
package layer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
)

// Params are the names of the layer fields, in positional order
var Params = [...]string{"identifier", "title", "abstract", "templateUrl", "zmin", "zmax", "bbox", "format"}

const (
	paramIdentifier = iota
	paramTitle
	paramAbstract
	paramTemplateURL
	paramMinZoom
	paramMaxZoom
	paramBBox
	paramFormat
	numParams
)

const (
	DefaultMinZoom = 0
	DefaultMaxZoom = 18
	// MaxZoom is the deepest zoom level a layer may declare
	MaxZoom = 30
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// extensionFormats holds the extensions that do not map to "image/" + extension
var extensionFormats = map[string]string{
	"jpg": "image/jpeg",
}

// Descriptor is the canonical description of a tile layer
type Descriptor struct {
	Identifier string `validate:"required"`
	Title      string
	Abstract   string
	// URL with {x}, {y} and {z} placeholders
	TemplateURL string `validate:"required"`
	MinZoom     int    `default:"0" validate:"min=0"`
	MaxZoom     int    `default:"18" validate:"gtefield=MinZoom,max=30"`
	// nil when the layer covers the world
	BBox *BBox
	// MIME type of the tiles
	Format string `validate:"required"`
}

// BBox is an extent in EPSG:3857 meters. Integral marks the values that were given as integers,
// those are written without a fraction.
type BBox struct {
	geom.Extent
	Integral [4]bool
}

// ResourceTemplate returns the TemplateURL with the XYZ placeholders replaced by their WMTS equivalents
func (d Descriptor) ResourceTemplate() string {
	template := strings.ReplaceAll(d.TemplateURL, "{z}", "{TileMatrix}")
	template = strings.ReplaceAll(template, "{y}", "{TileRow}")
	return strings.ReplaceAll(template, "{x}", "{TileCol}")
}

// FormatFromTemplate derives a MIME type from the extension of a template URL.
// Everything after the last dot counts as the extension.
func FormatFromTemplate(templateURL string) string {
	ext := strings.ToLower(templateURL[strings.LastIndex(templateURL, ".")+1:])
	if format, ok := extensionFormats[ext]; ok {
		return format
	}
	return "image/" + ext
}

// Shape is the form a layer definition was given in
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeList
	ShapeMap
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeMap:
		return "map"
	default:
		return "invalid"
	}
}

// Input is a layer definition as given, before normalization.
// Construct it with FromList, FromMap or FromValue.
type Input struct {
	shape   Shape
	values  [numParams]any
	unknown []string
	raw     any
	err     error
}

// FromList creates an Input from up to 8 positional values. A nil value counts as unset.
func FromList(values []any) Input {
	in := Input{shape: ShapeList, raw: values}
	if len(values) > numParams {
		in.err = fmt.Errorf("expected at most %d values, got %d", numParams, len(values))
		return in
	}
	copy(in.values[:], values)
	return in
}

// FromMap creates an Input from a map keyed by Params. Other keys are ignored.
func FromMap(fields map[string]any) Input {
	in := Input{shape: ShapeMap, raw: fields}
	known := make(map[string]struct{}, numParams)
	for i, name := range Params {
		known[name] = struct{}{}
		in.values[i] = fields[name]
	}
	for key := range fields {
		if _, ok := known[key]; !ok {
			in.unknown = append(in.unknown, key)
		}
	}
	slices.Sort(in.unknown)
	return in
}

// FromValue dispatches a decoded value to FromList or FromMap.
// Any other value yields an Input that fails to normalize.
func FromValue(v any) Input {
	switch t := v.(type) {
	case Input:
		return t
	case []any:
		return FromList(t)
	case map[string]any:
		return FromMap(t)
	default:
		return Input{shape: ShapeInvalid, raw: v}
	}
}

func (in Input) Shape() Shape {
	return in.shape
}

// Raw returns the value the Input was created from
func (in Input) Raw() any {
	return in.raw
}

// UnknownKeys returns the keys of a map Input that are not layer fields
func (in Input) UnknownKeys() []string {
	return in.unknown
}

// Normalize fills in the defaults and validates the Input.
// All errors are of type *MalformedError.
func (in Input) Normalize() (Descriptor, error) {
	var d Descriptor
	if in.err != nil {
		return d, &MalformedError{Shape: in.shape, Value: in.raw, Err: in.err}
	}
	if in.shape == ShapeInvalid {
		return d, &MalformedError{Shape: in.shape, Value: in.raw, Err: fmt.Errorf("not a list or a map but a %T", in.raw)}
	}
	if err := defaults.Set(&d); err != nil {
		return d, &MalformedError{Shape: in.shape, Value: in.raw, Err: err}
	}
	if err := in.assign(&d); err != nil {
		return d, &MalformedError{Shape: in.shape, Value: in.raw, Err: err}
	}
	if d.Format == "" {
		d.Format = FormatFromTemplate(d.TemplateURL)
	}
	if err := validate.Struct(&d); err != nil {
		return d, &MalformedError{Shape: in.shape, Value: in.raw, Err: err}
	}
	return d, nil
}

//nolint:cyclop
func (in Input) assign(d *Descriptor) error {
	var err error
	for i, v := range in.values {
		if v == nil {
			continue
		}
		name := Params[i]
		switch i {
		case paramIdentifier:
			d.Identifier, err = asString(name, v)
		case paramTitle:
			d.Title, err = asString(name, v)
		case paramAbstract:
			d.Abstract, err = asString(name, v)
		case paramTemplateURL:
			d.TemplateURL, err = asString(name, v)
		case paramMinZoom:
			d.MinZoom, err = asInt(name, v)
		case paramMaxZoom:
			d.MaxZoom, err = asInt(name, v)
		case paramBBox:
			d.BBox, err = asBBox(name, v)
		case paramFormat:
			d.Format, err = asString(name, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
