package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// unitRange bounds the numeric parameters frei0r plugins conventionally
// normalize to [0, 1]. It is advisory: values outside it are still passed
// through unchanged.
var (
	unitMin = json.Number("0")
	unitMax = json.Number("1")
)

// ParamSchema describes a plugin's parameters as a JSON Schema object, one
// property per parameter keyed by its sanitized name. current supplies
// defaults, typically read from a live instance; it may be nil.
func ParamSchema(info frei0r.PluginInfo, params []frei0r.ParamInfo, current map[int]frei0r.Value) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	for i, p := range params {
		prop := paramProperty(p)
		prop.Extras = map[string]any{"x-frei0r-index": i, "x-frei0r-kind": p.Kind.String()}
		if v, ok := current[i]; ok && v.Kind == p.Kind {
			prop.Default = v.Any()
		}
		props.Set(SanitizeName(p.Name), prop)
	}

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                info.Name,
		Description:          info.Explanation,
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: jsonschema.FalseSchema,
		Extras: map[string]any{
			"x-frei0r-kind":        info.Kind.String(),
			"x-frei0r-color-model": info.ColorModel.String(),
			"x-frei0r-author":      info.Author,
			"x-frei0r-version":     info.Version(),
		},
	}
}

func paramProperty(p frei0r.ParamInfo) *jsonschema.Schema {
	s := &jsonschema.Schema{Title: p.Name, Description: p.Explanation}
	switch p.Kind {
	case frei0r.ParamBool:
		s.Type = "boolean"
	case frei0r.ParamDouble:
		s.Type = "number"
	case frei0r.ParamColor:
		s.Type = "object"
		s.Properties = jsonschema.NewProperties()
		for _, ch := range []string{"r", "g", "b"} {
			s.Properties.Set(ch, &jsonschema.Schema{Type: "number", Minimum: unitMin, Maximum: unitMax})
		}
		s.Required = []string{"r", "g", "b"}
	case frei0r.ParamPosition:
		s.Type = "object"
		s.Properties = jsonschema.NewProperties()
		s.Properties.Set("x", &jsonschema.Schema{Type: "number"})
		s.Properties.Set("y", &jsonschema.Schema{Type: "number"})
		s.Required = []string{"x", "y"}
	case frei0r.ParamString:
		s.Type = "string"
	}
	return s
}

// MarshalParamSchema renders ParamSchema as indented JSON.
func MarshalParamSchema(info frei0r.PluginInfo, params []frei0r.ParamInfo, current map[int]frei0r.Value) ([]byte, error) {
	data, err := json.MarshalIndent(ParamSchema(info, params, current), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameter schema: %w", err)
	}
	return data, nil
}
