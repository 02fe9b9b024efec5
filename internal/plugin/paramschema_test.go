package plugin_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
)

func TestParamSchema(t *testing.T) {
	info := frei0r.PluginInfo{
		Name:          "tint",
		Author:        "frei0rtest",
		Kind:          frei0r.KindFilter,
		ColorModel:    frei0r.ColorModelRGBA8888,
		Frei0rVersion: 1,
		MajorVersion:  0,
		MinorVersion:  2,
		NumParams:     len(testParams),
		Explanation:   "tints things",
	}
	current := map[int]frei0r.Value{
		1: frei0r.DoubleValue(0.25),
		// Wrong kind for index 4: ignored.
		4: frei0r.DoubleValue(1),
	}

	data, err := plugin.MarshalParamSchema(info, testParams, current)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "tint", doc["title"])
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, "filter", doc["x-frei0r-kind"])
	assert.Equal(t, "1.0.2", doc["x-frei0r-version"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, props, 5)

	tests := []struct {
		name string
		typ  string
	}{
		{"Invert", "boolean"},
		{"Amount", "number"},
		{"Tint_Color", "object"},
		{"center", "object"},
		{"topic", "string"},
	}
	for i, tt := range tests {
		prop, ok := props[tt.name].(map[string]any)
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.typ, prop["type"], tt.name)
		assert.InDelta(t, float64(i), prop["x-frei0r-index"], 0, tt.name)
		assert.Equal(t, testParams[i].Explanation, prop["description"], tt.name)
	}

	amount := props["Amount"].(map[string]any)
	assert.InDelta(t, 0.25, amount["default"], 1e-9)
	assert.NotContains(t, props["topic"], "default")

	tint := props["Tint_Color"].(map[string]any)
	assert.ElementsMatch(t, []any{"r", "g", "b"}, tint["required"])
}
