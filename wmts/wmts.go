// Package wmts builds OGC WMTS 1.0.0 Capabilities documents for XYZ/TMS tile layers.
// See https://www.ogc.org/standard/wmts/
package wmts

import (
	"fmt"
	"io"
	"strconv"

	"github.com/muesli/reflow/truncate"
	"github.com/sirupsen/logrus"

	"github.com/pdok/xyz2wmts/layer"
	"github.com/pdok/xyz2wmts/mercator"
	"github.com/pdok/xyz2wmts/settings"
	"github.com/pdok/xyz2wmts/tilematrixset"
	"github.com/pdok/xyz2wmts/xmltree"
)

const (
	Version     = "1.0.0"
	ServiceType = "OGC WMTS"

	NamespaceWMTS  = "http://www.opengis.net/wmts/1.0"
	NamespaceOWS   = "http://www.opengis.net/ows/1.1"
	NamespaceXLink = "http://www.w3.org/1999/xlink"
	NamespaceXSI   = "http://www.w3.org/2001/XMLSchema-instance"
	SchemaLocation = NamespaceWMTS + " http://schemas.opengis.net/wmts/1.0/wmtsGetCapabilities_response.xsd"

	// CRS of the layer bounding boxes and the tile matrix sets
	CRS = tilematrixset.SupportedCRS
	// WGS84CRS of the layer WGS84 bounding boxes
	WGS84CRS = "urn:ogc:def:crs:OGC:2:84"

	maxLoggedValueWidth = 120
)

// Capabilities is the result of BuildCapabilities
type Capabilities struct {
	// Root is the Capabilities element, ready to be written with xmltree.Encode
	Root *xmltree.Node
	// Identifiers of the layers in the document
	Layers []string
	// Tile matrix sets in the document, in order of first use
	TileMatrixSets []tilematrixset.TileMatrixSet
	// Skipped holds an error per layer definition that was left out
	Skipped []error
}

type Option func(b *builder)

// WithLogger reports skipped layers and ignored keys to the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

type builder struct {
	logger   logrus.FieldLogger
	registry *tilematrixset.Registry
	seen     map[string]int
	result   *Capabilities
}

// BuildCapabilities builds the Capabilities document tree from the settings.
// Invalid settings are fatal: a missing metadata URL gives a *settings.MissingFieldError
// before any layer is looked at. Malformed or duplicate layers are skipped and reported in
// Capabilities.Skipped.
func BuildCapabilities(s *settings.Settings, opts ...Option) (*Capabilities, error) {
	if s == nil || s.MetadataURL == "" {
		return nil, &settings.MissingFieldError{Field: "metadataURL"}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	discard := logrus.New()
	discard.Out = io.Discard
	b := &builder{
		logger:   discard,
		registry: tilematrixset.NewRegistry(),
		seen:     make(map[string]int),
		result:   &Capabilities{},
	}
	for _, opt := range opts {
		opt(b)
	}

	contents, err := b.contents(s.Layers, s.TileSize)
	if err != nil {
		return nil, err
	}

	b.result.Root = xmltree.Element("Capabilities", xmltree.Attrs(
		"version", Version,
		"xmlns", NamespaceWMTS,
		"xmlns:ows", NamespaceOWS,
		"xmlns:xlink", NamespaceXLink,
		"xmlns:xsi", NamespaceXSI,
		"xsi:schemaLocation", SchemaLocation,
	),
		xmltree.Element("ServiceMetadataURL", xmltree.Attrs("xlink:href", s.MetadataURL)),
		serviceIdentification(s.Service),
		serviceProvider(s.Provider),
		contents,
	)
	return b.result, nil
}

func serviceIdentification(service *settings.Service) *xmltree.Node {
	if service == nil {
		return nil
	}
	children := []*xmltree.Node{
		xmltree.TextElement("ows:ServiceType", ServiceType),
		xmltree.TextElement("ows:ServiceTypeVersion", Version),
		xmltree.TextElement("ows:Title", service.Title),
	}
	if service.Abstract != nil {
		for p := service.Abstract.Oldest(); p != nil; p = p.Next() {
			children = append(children, xmltree.TextElement("ows:Abstract", p.Value, xmltree.Attr{Name: "xml:lang", Value: p.Key}))
		}
	}
	if len(service.Keywords) > 0 {
		keywords := make([]*xmltree.Node, 0, len(service.Keywords))
		for _, keyword := range service.Keywords {
			keywords = append(keywords, xmltree.TextElement("ows:Keyword", keyword))
		}
		children = append(children, xmltree.Element("ows:Keywords", nil, keywords...))
	}
	if service.Fees != "" {
		children = append(children, xmltree.TextElement("ows:Fees", service.Fees))
	}
	if service.AccessConstraints != "" {
		children = append(children, xmltree.TextElement("ows:AccessConstraints", service.AccessConstraints))
	}
	return xmltree.Element("ows:ServiceIdentification", nil, children...)
}

func serviceProvider(provider *settings.Provider) *xmltree.Node {
	if provider == nil {
		return nil
	}
	var site *xmltree.Node
	if provider.SiteURL != "" {
		site = xmltree.Element("ows:ProviderSite", xmltree.Attrs("xlink:href", provider.SiteURL))
	}
	return xmltree.Element("ows:ServiceProvider", nil,
		xmltree.TextElement("ows:ProviderName", provider.Name),
		site,
	)
}

func (b *builder) contents(inputs []layer.Input, tileSize uint) (*xmltree.Node, error) {
	children := make([]*xmltree.Node, 0, len(inputs))
	for i, in := range inputs {
		d, err := b.normalize(i, in)
		if err != nil {
			b.logger.WithField("value", truncate.StringWithTail(fmt.Sprint(in.Raw()), maxLoggedValueWidth, "...")).
				Warnf("skipping layer: %v", err)
			b.result.Skipped = append(b.result.Skipped, err)
			continue
		}
		if unknown := in.UnknownKeys(); len(unknown) > 0 {
			b.logger.WithField("layer", d.Identifier).Warnf("ignoring unknown keys %v", unknown)
		}
		children = append(children, b.layer(d))
		b.result.Layers = append(b.result.Layers, d.Identifier)
	}

	tileMatrixSets, err := b.registry.Derive(tileSize)
	if err != nil {
		return nil, err
	}
	for _, tms := range tileMatrixSets {
		children = append(children, tileMatrixSet(tms))
	}
	b.result.TileMatrixSets = tileMatrixSets

	return xmltree.Element("Contents", nil, children...), nil
}

func (b *builder) normalize(i int, in layer.Input) (layer.Descriptor, error) {
	d, err := in.Normalize()
	if err != nil {
		return d, fmt.Errorf("layer %d: %w", i, err)
	}
	if first, ok := b.seen[d.Identifier]; ok {
		return d, fmt.Errorf("layer %d: %w", i, &DuplicateIdentifierError{Identifier: d.Identifier, First: first})
	}
	b.seen[d.Identifier] = i
	return d, nil
}

func (b *builder) layer(d layer.Descriptor) *xmltree.Node {
	var abstract *xmltree.Node
	if d.Abstract != "" {
		abstract = xmltree.TextElement("ows:Abstract", d.Abstract)
	}

	bbox := layer.BBox{Extent: mercator.WorldExtent()}
	var wgs84BoundingBox *xmltree.Node
	if d.BBox != nil {
		bbox = *d.BBox
		wgs84BoundingBox = boundingBox("ows:WGS84BoundingBox", WGS84CRS, layer.BBox{Extent: mercator.ExtentToDegrees(bbox.Extent)})
	}

	tileMatrixSetID := b.registry.Register(tilematrixset.ZoomRange{Min: uint(d.MinZoom), Max: uint(d.MaxZoom)})

	return xmltree.Element("Layer", nil,
		xmltree.TextElement("ows:Identifier", d.Identifier),
		xmltree.TextElement("ows:Title", d.Title),
		abstract,
		boundingBox("ows:BoundingBox", CRS, bbox),
		wgs84BoundingBox,
		xmltree.Element("Style", xmltree.Attrs("isDefault", "true"),
			xmltree.TextElement("ows:Identifier", "default"),
		),
		xmltree.TextElement("Format", d.Format),
		xmltree.Element("TileMatrixSetLink", nil,
			xmltree.TextElement("TileMatrixSet", tileMatrixSetID),
		),
		xmltree.Element("ResourceURL", xmltree.Attrs(
			"format", d.Format,
			"resourceType", "tile",
			"template", d.ResourceTemplate(),
		)),
	)
}

func tileMatrixSet(tms tilematrixset.TileMatrixSet) *xmltree.Node {
	children := []*xmltree.Node{
		xmltree.TextElement("ows:Identifier", tms.ID),
		xmltree.TextElement("ows:SupportedCRS", tms.SupportedCRS),
	}
	for _, tm := range tms.TileMatrices {
		children = append(children, xmltree.Element("TileMatrix", nil,
			xmltree.TextElement("ows:Identifier", tm.ID),
			xmltree.TextElement("ScaleDenominator", tilematrixset.FormatScaleDenominator(tm.ScaleDenominator)),
			xmltree.TextElement("TopLeftCorner", tilematrixset.FormatCorner(tm.TopLeftCorner)),
			xmltree.TextElement("TileWidth", formatUint(tm.TileWidth)),
			xmltree.TextElement("TileHeight", formatUint(tm.TileHeight)),
			xmltree.TextElement("MatrixWidth", formatUint(tm.MatrixWidth)),
			xmltree.TextElement("MatrixHeight", formatUint(tm.MatrixHeight)),
		))
	}
	return xmltree.Element("TileMatrixSet", nil, children...)
}

func formatUint(u uint) string {
	return strconv.FormatUint(uint64(u), 10)
}
