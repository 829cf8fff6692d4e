package wmts

import (
	"errors"
	"os"
	"path"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/xyz2wmts/layer"
	"github.com/pdok/xyz2wmts/mercator"
	"github.com/pdok/xyz2wmts/settings"
	"github.com/pdok/xyz2wmts/tilematrixset"
	"github.com/pdok/xyz2wmts/xmltree"
)

func TestBuildCapabilities_Golden(t *testing.T) {
	s, err := settings.Load(path.Join("testdata", "settings.yaml"))
	require.NoError(t, err)
	want, err := os.ReadFile(path.Join("testdata", "capabilities.xml"))
	require.NoError(t, err)

	caps, err := BuildCapabilities(s)
	require.NoError(t, err)
	assert.Empty(t, caps.Skipped)
	assert.Equal(t, []string{"osm", "srtm3", "gsi"}, caps.Layers)

	// latitudes go through exp and atan, allow for the last bit differing from the reference
	layers := caps.Root.FindAll("Contents/Layer")
	require.Len(t, layers, 3)
	wgs84 := layers[1].Find("ows:WGS84BoundingBox")
	require.NotNil(t, wgs84)
	for corner, wantXY := range map[string][2]float64{
		"ows:LowerCorner": {120.00000004318356, 19.999999772186058},
		"ows:UpperCorner": {153.99999836359177, 47.0000001689007},
	} {
		node := wgs84.Find(corner)
		xy := parsePoint(t, node.Text)
		assert.InDelta(t, wantXY[0], xy[0], 1e-12)
		assert.InDelta(t, wantXY[1], xy[1], 1e-12)
		node.Text = formatCoordinate(wantXY[0], false) + " " + formatCoordinate(wantXY[1], false)
	}

	got, err := xmltree.Marshal(caps.Root, xmltree.DefaultIndent)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestBuildCapabilities_SharedTileMatrixSet(t *testing.T) {
	s := &settings.Settings{
		MetadataURL: "http://localhost/WMTSCapabilities.xml",
		TileSize:    256,
		Layers: []layer.Input{
			layer.FromList([]any{"a", "A", "", "http://x/a/{z}/{x}/{y}.png", 0, 5}),
			layer.FromMap(map[string]any{"identifier": "b", "title": "B", "templateUrl": "http://x/b/{z}/{x}/{y}.png", "zmin": 0, "zmax": 5}),
		},
	}
	caps, err := BuildCapabilities(s)
	require.NoError(t, err)

	require.Len(t, caps.TileMatrixSets, 1)
	assert.Equal(t, "z0to5", caps.TileMatrixSets[0].ID)

	sets := caps.Root.FindAll("Contents/TileMatrixSet")
	require.Len(t, sets, 1)
	assert.Equal(t, "z0to5", sets[0].Find("ows:Identifier").Text)
	matrices := sets[0].FindAll("TileMatrix")
	require.Len(t, matrices, 6)
	for zoom, tm := range matrices {
		assert.Equal(t, strconv.Itoa(zoom), tm.Find("ows:Identifier").Text)
		assert.Equal(t, tilematrixset.FormatScaleDenominator(mercator.ScaleDenominator(uint(zoom))), tm.Find("ScaleDenominator").Text)
		assert.Equal(t, "-20037508.34278924 20037508.34278924", tm.Find("TopLeftCorner").Text)
		assert.Equal(t, strconv.Itoa(1<<zoom), tm.Find("MatrixWidth").Text)
		assert.Equal(t, strconv.Itoa(1<<zoom), tm.Find("MatrixHeight").Text)
		assert.Equal(t, "256", tm.Find("TileWidth").Text)
	}

	for _, l := range caps.Root.FindAll("Contents/Layer") {
		assert.Equal(t, "z0to5", l.Find("TileMatrixSetLink/TileMatrixSet").Text)
	}
}

func TestBuildCapabilities_Layer(t *testing.T) {
	s := &settings.Settings{
		MetadataURL: "http://localhost/WMTSCapabilities.xml",
		TileSize:    512,
		Layers: []layer.Input{
			layer.FromList([]any{"a", "A", "", "http://x/{z}/{x}/{y}.png"}),
			layer.FromList([]any{"b", "B", "about b", "http://x/{z}/{x}/{y}.jpg", 2, 3, []any{-1000.0, -2000.0, 1000.0, 2000.0}}),
		},
	}
	caps, err := BuildCapabilities(s)
	require.NoError(t, err)
	layers := caps.Root.FindAll("Contents/Layer")
	require.Len(t, layers, 2)

	a := layers[0]
	assert.Nil(t, a.Find("ows:Abstract"))
	assert.Equal(t, "-20037508.342789244 -20037508.342789244", a.Find("ows:BoundingBox/ows:LowerCorner").Text)
	assert.Equal(t, "20037508.342789244 20037508.342789244", a.Find("ows:BoundingBox/ows:UpperCorner").Text)
	crs, _ := a.Find("ows:BoundingBox").Attr("crs")
	assert.Equal(t, CRS, crs)
	assert.Nil(t, a.Find("ows:WGS84BoundingBox"))
	assert.Equal(t, "image/png", a.Find("Format").Text)
	assert.Equal(t, "z0to18", a.Find("TileMatrixSetLink/TileMatrixSet").Text)
	template, _ := a.Find("ResourceURL").Attr("template")
	assert.Equal(t, "http://x/{TileMatrix}/{TileCol}/{TileRow}.png", template)
	isDefault, _ := a.Find("Style").Attr("isDefault")
	assert.Equal(t, "true", isDefault)
	assert.Equal(t, "default", a.Find("Style/ows:Identifier").Text)

	b := layers[1]
	assert.Equal(t, "about b", b.Find("ows:Abstract").Text)
	assert.Equal(t, "-1000.0 -2000.0", b.Find("ows:BoundingBox/ows:LowerCorner").Text)
	assert.Equal(t, "1000.0 2000.0", b.Find("ows:BoundingBox/ows:UpperCorner").Text)
	require.NotNil(t, b.Find("ows:WGS84BoundingBox"))
	crs, _ = b.Find("ows:WGS84BoundingBox").Attr("crs")
	assert.Equal(t, WGS84CRS, crs)
	lower := parsePoint(t, b.Find("ows:WGS84BoundingBox/ows:LowerCorner").Text)
	wantLon, wantLat := mercator.MetersToDegrees(-1000, -2000)
	assert.Equal(t, wantLon, lower[0])
	assert.Equal(t, wantLat, lower[1])
	format, _ := b.Find("ResourceURL").Attr("format")
	assert.Equal(t, "image/jpeg", format)

	sets := caps.Root.FindAll("Contents/TileMatrixSet")
	require.Len(t, sets, 2)
	assert.Equal(t, "z0to18", sets[0].Find("ows:Identifier").Text)
	assert.Len(t, sets[0].FindAll("TileMatrix"), 19)
	assert.Equal(t, "z2to3", sets[1].Find("ows:Identifier").Text)
	assert.Equal(t, "512", sets[1].Find("TileMatrix/TileHeight").Text)
}

func TestBuildCapabilities_OptionalBlocks(t *testing.T) {
	s, err := settings.Parse([]byte(`metadataURL: http://localhost/WMTSCapabilities.xml
service:
  Title: Only a title
provider:
  Name: Nobody
`), settings.YAML)
	require.NoError(t, err)
	caps, err := BuildCapabilities(s)
	require.NoError(t, err)

	service := caps.Root.Find("ows:ServiceIdentification")
	require.NotNil(t, service)
	assert.Equal(t, "OGC WMTS", service.Find("ows:ServiceType").Text)
	assert.Equal(t, "1.0.0", service.Find("ows:ServiceTypeVersion").Text)
	assert.Equal(t, "Only a title", service.Find("ows:Title").Text)
	assert.Nil(t, service.Find("ows:Abstract"))
	assert.Nil(t, service.Find("ows:Keywords"))
	assert.Nil(t, service.Find("ows:Fees"))
	assert.Nil(t, service.Find("ows:AccessConstraints"))

	provider := caps.Root.Find("ows:ServiceProvider")
	require.NotNil(t, provider)
	assert.Equal(t, "Nobody", provider.Find("ows:ProviderName").Text)
	assert.Nil(t, provider.Find("ows:ProviderSite"))

	contents := caps.Root.Find("Contents")
	require.NotNil(t, contents)
	assert.Empty(t, contents.Children)

	s.Service, s.Provider = nil, nil
	caps, err = BuildCapabilities(s)
	require.NoError(t, err)
	names := make([]string, 0, len(caps.Root.Children))
	for _, child := range caps.Root.Children {
		names = append(names, child.Name)
	}
	assert.Equal(t, []string{"ServiceMetadataURL", "Contents"}, names)
	schemaLocation, _ := caps.Root.Attr("xsi:schemaLocation")
	assert.Equal(t, "http://www.opengis.net/wmts/1.0 http://schemas.opengis.net/wmts/1.0/wmtsGetCapabilities_response.xsd", schemaLocation)
}

func TestBuildCapabilities_MissingMetadataURL(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := &settings.Settings{
		TileSize: 256,
		Layers:   []layer.Input{layer.FromValue("not a layer")},
	}
	caps, err := BuildCapabilities(s, WithLogger(logger))
	require.Error(t, err)
	assert.Nil(t, caps)
	var missing *settings.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "metadataURL", missing.Field)
	assert.Empty(t, hook.AllEntries())

	_, err = BuildCapabilities(nil)
	require.True(t, errors.As(err, &missing))
}

func TestBuildCapabilities_InvalidSettings(t *testing.T) {
	s := &settings.Settings{MetadataURL: "http://localhost/WMTSCapabilities.xml", TileSize: 0}
	_, err := BuildCapabilities(s)
	var invalid *settings.InvalidFieldError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "tile_size", invalid.Field)
}

func TestBuildCapabilities_SkipsMalformedLayers(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := &settings.Settings{
		MetadataURL: "http://localhost/WMTSCapabilities.xml",
		TileSize:    256,
		Layers: []layer.Input{
			layer.FromValue("not a layer"),
			layer.FromList([]any{"a", "A", "", "http://x/{z}/{x}/{y}.png", 0, 3}),
			layer.FromList([]any{"b", "B", "", "http://x/{z}/{x}/{y}.png", 4, 3}),
			layer.FromMap(map[string]any{"identifier": "a", "templateUrl": "http://y/{z}/{x}/{y}.png"}),
			layer.FromMap(map[string]any{"identifier": "c", "templateUrl": "http://z/{z}/{x}/{y}.png", "zmax": 3, "color": "red"}),
		},
	}
	caps, err := BuildCapabilities(s, WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, caps.Layers)
	require.Len(t, caps.Skipped, 3)
	var malformed *layer.MalformedError
	assert.True(t, errors.As(caps.Skipped[0], &malformed))
	assert.Equal(t, layer.ShapeInvalid, malformed.Shape)
	assert.True(t, errors.As(caps.Skipped[1], &malformed))
	assert.Equal(t, layer.ShapeList, malformed.Shape)
	var duplicate *DuplicateIdentifierError
	require.True(t, errors.As(caps.Skipped[2], &duplicate))
	assert.Equal(t, "a", duplicate.Identifier)
	assert.Equal(t, 1, duplicate.First)
	assert.True(t, strings.HasPrefix(caps.Skipped[2].Error(), "layer 3: "))

	layers := caps.Root.FindAll("Contents/Layer")
	require.Len(t, layers, 2)
	assert.Equal(t, "a", layers[0].Find("ows:Identifier").Text)
	assert.Equal(t, "c", layers[1].Find("ows:Identifier").Text)
	assert.Len(t, caps.TileMatrixSets, 1)

	entries := hook.AllEntries()
	require.Len(t, entries, 4)
	for _, entry := range entries {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
	}
	assert.Equal(t, "not a layer", entries[0].Data["value"])
	assert.Equal(t, "c", entries[3].Data["layer"])
}

func TestBuildCapabilities_IntegerBBox(t *testing.T) {
	documents := map[settings.Format]string{
		settings.YAML: `metadataURL: http://localhost/WMTSCapabilities.xml
layers:
  - identifier: a
    templateUrl: "http://x/{z}/{x}/{y}.png"
    bbox: [0, -100, 100, 100.5]
`,
		settings.JSON: `{"metadataURL": "http://localhost/WMTSCapabilities.xml", "layers": [
  {"identifier": "a", "templateUrl": "http://x/{z}/{x}/{y}.png", "bbox": [0, -100, 100, 100.5]}]}`,
	}
	for format, document := range documents {
		t.Run(string(format), func(t *testing.T) {
			s, err := settings.Parse([]byte(document), format)
			require.NoError(t, err)
			caps, err := BuildCapabilities(s)
			require.NoError(t, err)
			require.Empty(t, caps.Skipped)

			a := caps.Root.Find("Contents/Layer")
			require.NotNil(t, a)
			assert.Equal(t, "0 -100", a.Find("ows:BoundingBox/ows:LowerCorner").Text)
			assert.Equal(t, "100 100.5", a.Find("ows:BoundingBox/ows:UpperCorner").Text)
			lon, lat := mercator.MetersToDegrees(0, -100)
			assert.Equal(t, formatCoordinate(lon, false)+" "+formatCoordinate(lat, false),
				a.Find("ows:WGS84BoundingBox/ows:LowerCorner").Text)
		})
	}
}

func TestFormatCoordinate(t *testing.T) {
	tests := []struct {
		f        float64
		integral bool
		want     string
	}{
		{0, false, "0.0"},
		{100, false, "100.0"},
		{-1000, false, "-1000.0"},
		{13358338.9, false, "13358338.9"},
		{20037508.342789244, false, "20037508.342789244"},
		{-20037508.342789244, false, "-20037508.342789244"},
		{47.0000001689007, false, "47.0000001689007"},
		{0.0001, false, "0.0001"},
		{0.00001, false, "1e-05"},
		{1e16, false, "1e+16"},
		{1.5e17, false, "1.5e+17"},
		{0, true, "0"},
		{100, true, "100"},
		{-1000, true, "-1000"},
		{1e16, true, "10000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCoordinate(tt.f, tt.integral))
		})
	}
}

func parsePoint(t *testing.T, s string) [2]float64 {
	t.Helper()
	parts := strings.Fields(s)
	require.Len(t, parts, 2)
	x, err := strconv.ParseFloat(parts[0], 64)
	require.NoError(t, err)
	y, err := strconv.ParseFloat(parts[1], 64)
	require.NoError(t, err)
	return [2]float64{x, y}
}
