// Package viewer extracts the tile source of a web map viewer page (OpenLayers style)
// and turns it into a layer of the settings.
package viewer

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdok/xyz2wmts/layer"
	"github.com/pdok/xyz2wmts/settings"
)

const (
	// OverlayIdentifier is the identifier and title of the layer taken from the viewer
	OverlayIdentifier = "overlay"
	// OverlayFormat is the format of the overlay layer. The viewer does not request tiles by
	// their extension, so the extension of the URL says nothing about the format.
	OverlayFormat = "image/png"
	// CapabilitiesFile is appended to the base URL to get the metadata URL
	CapabilitiesFile = "/WMTSCapabilities.xml"
)

var ErrNoScript = errors.New("no script element found")

var (
	minZoomRegex  = regexp.MustCompile(`minZoom: (\d+)`)
	maxZoomRegex  = regexp.MustCompile(`maxZoom: (\d+)`)
	extentRegex   = regexp.MustCompile(`extent: \[(.*?)\]`)
	tileSizeRegex = regexp.MustCompile(`tileSize: (\[.*?\])`)
	urlRegex      = regexp.MustCompile(`url: '(.*?)'`)
)

// MissingPatternError is returned when the viewer configuration lacks a value
type MissingPatternError struct {
	Name    string
	Pattern string
}

func (e *MissingPatternError) Error() string {
	return fmt.Sprintf("viewer configuration has no %s (pattern %s)", e.Name, e.Pattern)
}

// Config is the tile source configuration of a viewer
type Config struct {
	MinZoom int
	MaxZoom int
	// Extent in EPSG:3857 meters
	Extent   geom.Extent
	TileSize uint
	// Tile URL template with leading dots removed, e.g. "/{z}/{x}/{y}.webp"
	URL string
}

// Scrape reads the configuration from the last script element of an HTML page
func Scrape(r io.Reader) (Config, error) {
	var cfg Config
	script, err := lastScript(r)
	if err != nil {
		return cfg, err
	}

	minZoom, err := find(script, "minZoom", minZoomRegex)
	if err != nil {
		return cfg, err
	}
	if cfg.MinZoom, err = strconv.Atoi(minZoom); err != nil {
		return cfg, fmt.Errorf("invalid minZoom: %w", err)
	}

	maxZoom, err := find(script, "maxZoom", maxZoomRegex)
	if err != nil {
		return cfg, err
	}
	if cfg.MaxZoom, err = strconv.Atoi(maxZoom); err != nil {
		return cfg, fmt.Errorf("invalid maxZoom: %w", err)
	}

	extent, err := find(script, "extent", extentRegex)
	if err != nil {
		return cfg, err
	}
	if cfg.Extent, err = parseExtent(extent); err != nil {
		return cfg, err
	}

	tileSize, err := find(script, "tileSize", tileSizeRegex)
	if err != nil {
		return cfg, err
	}
	if cfg.TileSize, err = parseTileSize(tileSize); err != nil {
		return cfg, err
	}

	url, err := find(script, "url", urlRegex)
	if err != nil {
		return cfg, err
	}
	cfg.URL = strings.TrimLeft(url, ".")

	return cfg, nil
}

// Apply adds the viewer's layer to the settings and takes over its tile size.
// With a base URL the metadata URL is derived from it and the tile URL is made absolute.
func Apply(s *settings.Settings, cfg Config, baseURL string) {
	s.TileSize = cfg.TileSize
	templateURL := cfg.URL
	if baseURL != "" {
		s.MetadataURL = baseURL + CapabilitiesFile
		templateURL = baseURL + cfg.URL
	}
	s.Layers = append(s.Layers, layer.FromList([]any{
		OverlayIdentifier, OverlayIdentifier, "", templateURL, cfg.MinZoom, cfg.MaxZoom, cfg.Extent, OverlayFormat,
	}))
}

func find(script, name string, re *regexp.Regexp) (string, error) {
	match := re.FindStringSubmatch(script)
	if match == nil {
		return "", &MissingPatternError{Name: name, Pattern: re.String()}
	}
	return match[1], nil
}

func parseExtent(s string) (geom.Extent, error) {
	var extent geom.Extent
	parts := strings.Split(s, ",")
	if len(parts) != len(extent) {
		return extent, fmt.Errorf("extent should have 4 values, got %d: [%s]", len(parts), s)
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return extent, fmt.Errorf("invalid extent: %w", err)
		}
		extent[i] = f
	}
	return extent, nil
}

// parseTileSize takes the first value of e.g. "[512, 512]"
func parseTileSize(s string) (uint, error) {
	first := strings.Trim(strings.Split(s, ",")[0], "[] ")
	size, err := strconv.ParseUint(first, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tileSize: %w", err)
	}
	return uint(size), nil
}

func lastScript(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var last *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			last = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if last == nil {
		return "", ErrNoScript
	}
	var text strings.Builder
	for c := last.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}
	return text.String(), nil
}
