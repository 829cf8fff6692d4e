package layer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/perimeterx/marshmallow"
	"gopkg.in/yaml.v3"
)

// keyedFields is the JSON form of a map layer definition
type keyedFields struct {
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	TemplateURL string    `json:"templateUrl"`
	MinZoom     int       `json:"zmin"`
	MaxZoom     int       `json:"zmax"`
	BBox        []float64 `json:"bbox"`
	Format      string    `json:"format"`
}

func (f *keyedFields) value(i int) any {
	switch i {
	case paramIdentifier:
		return f.Identifier
	case paramTitle:
		return f.Title
	case paramAbstract:
		return f.Abstract
	case paramTemplateURL:
		return f.TemplateURL
	case paramMinZoom:
		return f.MinZoom
	case paramMaxZoom:
		return f.MaxZoom
	case paramBBox:
		return f.BBox
	case paramFormat:
		return f.Format
	}
	return nil
}

// UnmarshalJSON accepts a JSON array or object. Other JSON values and objects with
// wrongly typed fields are kept and fail on Normalize, so one bad layer does not break the settings.
func (in *Input) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		*in = FromValue(nil)
		return nil
	}
	switch trimmed[0] {
	case '[':
		var values []any
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		decoder.UseNumber()
		if err := decoder.Decode(&values); err != nil {
			return err
		}
		*in = FromList(values)
	case '{':
		*in = fromJSONObject(trimmed)
	default:
		var raw any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*in = FromValue(raw)
	}
	return nil
}

func fromJSONObject(data []byte) Input {
	var fields keyedFields
	all, err := marshmallow.Unmarshal(data, &fields)
	if err != nil {
		return Input{shape: ShapeMap, raw: string(data), err: err}
	}
	in := Input{shape: ShapeMap, raw: all}
	known := make(map[string]struct{}, numParams)
	for i, name := range Params {
		known[name] = struct{}{}
		if v, ok := all[name]; ok && v != nil {
			in.values[i] = fields.value(i)
		}
	}
	if in.values[paramBBox] != nil {
		if in.values[paramBBox], err = bboxNumbers(data); err != nil {
			in.err = err
		}
	}
	for key := range all {
		if _, ok := known[key]; !ok {
			in.unknown = append(in.unknown, key)
		}
	}
	slices.Sort(in.unknown)
	return in
}

// bboxNumbers decodes the bbox once more to tell integers from floats
func bboxNumbers(data []byte) ([]any, error) {
	var numbers struct {
		BBox []json.Number `json:"bbox"`
	}
	if err := json.Unmarshal(data, &numbers); err != nil {
		return nil, err
	}
	values := make([]any, 0, len(numbers.BBox))
	for _, n := range numbers.BBox {
		values = append(values, n)
	}
	return values, nil
}

// UnmarshalYAML accepts a sequence or a mapping node. Nodes that do not decode are kept
// and fail on Normalize, like wrongly typed JSON objects.
func (in *Input) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var values []any
		if err := node.Decode(&values); err != nil {
			*in = Input{shape: ShapeList, raw: nodeSource(node), err: err}
			return nil
		}
		*in = FromList(values)
	case yaml.MappingNode:
		var fields map[string]any
		if err := node.Decode(&fields); err != nil {
			*in = Input{shape: ShapeMap, raw: nodeSource(node), err: err}
			return nil
		}
		*in = FromMap(fields)
	default:
		var raw any
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*in = FromValue(raw)
	}
	return nil
}

// nodeSource renders a node back to YAML for error messages
func nodeSource(node *yaml.Node) string {
	out, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Sprintf("line %d", node.Line)
	}
	return strings.TrimSpace(string(out))
}
