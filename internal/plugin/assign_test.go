// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
	"github.com/frei0rhost/frei0rhost/pkg/errutil"
)

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Amount=0.5", "Amount=0.5"},
		{"amount = -1.25e-1", "amount=-0.125"},
		{"Tint_Color=rgb(1, 0.5, 0)", "Tint_Color=rgb(1, 0.5, 0)"},
		{`"Tint Color"=rgb(0,0,1)`, "Tint Color=rgb(0, 0, 1)"},
		{"center=(0.25, .75)", "center=(0.25, 0.75)"},
		{"center.X=0.1", "center.x=0.1"},
		{"Invert=on", "Invert=on"},
		{`topic="camera/image raw"`, `topic="camera/image raw"`},
		{"topic=camera", "topic=camera"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := plugin.ParseAssignment(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.String())
		})
	}
}

func TestParseAssignment_Invalid(t *testing.T) {
	for _, input := range []string{
		"",
		"amount",
		"amount=",
		"=0.5",
		"tint=rgb(1, 0)",
		"center=(1 2)",
		"amount=0.5 extra",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := plugin.ParseAssignment(input)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, frei0r.CodeParamParse)
		})
	}
}

func TestAssignment_Resolve(t *testing.T) {
	tests := []struct {
		input string
		index int
		value frei0r.Value
		comp  string
	}{
		{"Invert=true", 0, frei0r.BoolValue(true), ""},
		{"invert=off", 0, frei0r.BoolValue(false), ""},
		{"Invert=1", 0, frei0r.BoolValue(true), ""},
		{"Amount=0.5", 1, frei0r.DoubleValue(0.5), ""},
		{"Tint_Color=rgb(1, 0.5, 0)", 2, frei0r.ColorValue(frei0r.Color{R: 1, G: 0.5, B: 0}), ""},
		{`"Tint Color"=rgb(0, 0, 1)`, 2, frei0r.ColorValue(frei0r.Color{B: 1}), ""},
		{"center=(0.25, 0.75)", 3, frei0r.PositionValue(frei0r.Position{X: 0.25, Y: 0.75}), ""},
		{"topic=camera", 4, frei0r.StringValue("camera"), ""},
		{`topic="a b"`, 4, frei0r.StringValue("a b"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := plugin.ParseAssignment(tt.input)
			require.NoError(t, err)
			edit, err := a.Resolve(testParams)
			require.NoError(t, err)
			assert.Equal(t, tt.index, edit.Index)
			assert.Equal(t, tt.value, edit.Value)
			assert.Equal(t, testParams[tt.index], edit.Param)
		})
	}
}

func TestAssignment_ResolveComponent(t *testing.T) {
	a, err := plugin.ParseAssignment("tint_color.g=0.4")
	require.NoError(t, err)
	edit, err := a.Resolve(testParams)
	require.NoError(t, err)
	assert.Equal(t, 2, edit.Index)
	assert.Equal(t, "g", edit.Component)
	assert.InDelta(t, 0.4, edit.Scalar, 1e-9)

	p := plugin.NewPendingUpdates()
	edit.Queue(p)
	assert.Equal(t, 1, p.Len())

	a, err = plugin.ParseAssignment("center.y=2")
	require.NoError(t, err)
	edit, err = a.Resolve(testParams)
	require.NoError(t, err)
	edit.Queue(p)
	assert.Equal(t, 2, p.Len())
}

func TestAssignment_ResolveErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"missing=1", frei0r.CodeParamUnknown},
		{"Amount=true", frei0r.CodeParamKind},
		{"Amount=rgb(1,1,1)", frei0r.CodeParamKind},
		{"center=0.5", frei0r.CodeParamKind},
		{"Tint_Color=(1, 1)", frei0r.CodeParamKind},
		{"topic=0.5", frei0r.CodeParamKind},
		{"Amount.x=0.5", frei0r.CodeParamKind},
		{"center.r=0.5", frei0r.CodeParamKind},
		{"center.x=true", frei0r.CodeParamKind},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := plugin.ParseAssignment(tt.input)
			require.NoError(t, err)
			_, err = a.Resolve(testParams)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestResolveAll(t *testing.T) {
	assignments, err := plugin.ParseAssignments([]string{"Amount=0.1", "Invert=true"})
	require.NoError(t, err)
	edits, err := plugin.ResolveAll(testParams, assignments)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, 1, edits[0].Index)
	assert.Equal(t, 0, edits[1].Index)

	_, err = plugin.ParseAssignments([]string{"Amount=0.1", "bad"})
	require.Error(t, err)
}

func TestFindParam(t *testing.T) {
	i, ok := plugin.FindParam(testParams, "Tint_Color")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	i, ok = plugin.FindParam(testParams, "TINT COLOR")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = plugin.FindParam(testParams, "tint")
	assert.False(t, ok)
}

func TestFindParam_Key(t *testing.T) {
	params := []frei0r.ParamInfo{
		{Name: "3d depth", Kind: frei0r.ParamDouble},
		{Name: "Amount", Kind: frei0r.ParamDouble},
		{Name: "pAmount", Kind: frei0r.ParamDouble},
	}
	assert.Equal(t, "p3d_depth", plugin.ParamKey("3d depth"))

	i, ok := plugin.FindParam(params, "p3d_depth")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = plugin.FindParam(params, "P3D_DEPTH")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = plugin.FindParam(params, "pAmount")
	assert.True(t, ok)
	assert.Equal(t, 2, i, "a declared name beats a key")

	a, err := plugin.ParseAssignment("p3d_depth=0.25")
	require.NoError(t, err)
	edit, err := a.Resolve(params)
	require.NoError(t, err)
	assert.Equal(t, 0, edit.Index)
	assert.Equal(t, frei0r.DoubleValue(0.25), edit.Value)
}
