package wmts

import (
	"math"
	"strconv"
	"strings"

	"github.com/pdok/xyz2wmts/layer"
	"github.com/pdok/xyz2wmts/xmltree"
)

// formatCoordinate writes the shortest representation that reads back to the same float.
// Integral floats get a ".0" suffix, very large and very small values an exponent.
// Values given as integers are written as integers.
func formatCoordinate(f float64, integral bool) string {
	if integral {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".IN") {
		s += ".0"
	}
	return s
}

func formatCorner(bbox layer.BBox, x, y int) string {
	return formatCoordinate(bbox.Extent[x], bbox.Integral[x]) + " " + formatCoordinate(bbox.Extent[y], bbox.Integral[y])
}

func boundingBox(name, crs string, bbox layer.BBox) *xmltree.Node {
	return xmltree.Element(name, xmltree.Attrs("crs", crs),
		xmltree.TextElement("ows:LowerCorner", formatCorner(bbox, 0, 1)),
		xmltree.TextElement("ows:UpperCorner", formatCorner(bbox, 2, 3)),
	)
}
