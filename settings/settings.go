// Package settings loads the settings a Capabilities document is built from.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/pdok/xyz2wmts/layer"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their names in the settings file
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Settings describe the service and the layers of a Capabilities document
type Settings struct {
	// URL the Capabilities document will be published at
	MetadataURL string        `yaml:"metadataURL" json:"metadataURL" validate:"required"`
	Service     *Service      `yaml:"service" json:"service"`
	Provider    *Provider     `yaml:"provider" json:"provider"`
	Layers      []layer.Input `yaml:"layers" json:"layers"`
	// Width and height of the tiles of all layers in pixels
	TileSize uint `yaml:"tile_size" json:"tile_size" default:"256" validate:"min=1"`
}

// Service is the ows:ServiceIdentification of the document
type Service struct {
	Title string `yaml:"Title" json:"Title" validate:"required"`
	// Abstract per language tag, in order
	Abstract          *orderedmap.OrderedMap[string, string] `yaml:"Abstract" json:"Abstract"`
	Keywords          []string                               `yaml:"Keywords" json:"Keywords"`
	Fees              string                                 `yaml:"Fees" json:"Fees"`
	AccessConstraints string                                 `yaml:"AccessConstraints" json:"AccessConstraints"`
}

// Provider is the ows:ServiceProvider of the document
type Provider struct {
	Name    string `yaml:"Name" json:"Name" validate:"required"`
	SiteURL string `yaml:"SiteURL" json:"SiteURL"`
}

// Format of a settings file
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatFromPath determines the format of a settings file by its extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf(`unsupported settings file "%s", expected .yaml, .yml or .json`, path)
	}
}

// Load reads a YAML or JSON settings file. The result is not validated yet.
func Load(path string) (*Settings, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes settings and applies the defaults. The result is not validated yet.
func Parse(data []byte, format Format) (*Settings, error) {
	s := &Settings{}
	if err := defaults.Set(s); err != nil {
		return nil, err
	}
	var err error
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, s)
	case JSON:
		err = json.Unmarshal(data, s)
	default:
		err = fmt.Errorf("unknown settings format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Validate returns a *MissingFieldError for an absent required field
// and an *InvalidFieldError for any other violation.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	for _, fe := range validationErrors {
		if fe.Tag() == "required" {
			return &MissingFieldError{Field: fieldPath(fe)}
		}
	}
	fe := validationErrors[0]
	return &InvalidFieldError{Field: fieldPath(fe), Rule: fe.ActualTag(), Param: fe.Param(), Value: fe.Value()}
}

// fieldPath strips the struct name from the namespace: "Settings.service.Title" becomes "service.Title"
func fieldPath(fe validator.FieldError) string {
	parts := strings.SplitN(fe.Namespace(), ".", 2)
	return parts[len(parts)-1]
}
