// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// assignLexer tokenizes parameter assignments such as
//
//	amount=0.5  tint=rgb(1, 0.5, 0)  center=(0.25, 0.75)  center.x=0.1
//	"Border Width"=0.2  invert=true  topic=camera
var assignLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][\w-]*`},
	{Name: "Punct", Pattern: `[=(),.]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Assignment is one parsed "name[.component]=literal" edit.
type Assignment struct {
	Pos       lexer.Position `parser:""`
	Name      string         `parser:"@(Ident | String)"`
	Component string         `parser:"('.' @Ident)?"`
	Value     *Literal       `parser:"'=' @@"`
}

// Literal is the right-hand side of an assignment.
type Literal struct {
	Color    *ColorLiteral    `parser:"  'rgb' '(' @@ ')'"`
	Position *PositionLiteral `parser:"| '(' @@ ')'"`
	Bool     *string          `parser:"| @('true' | 'false' | 'on' | 'off')"`
	Number   *float64         `parser:"| @Number"`
	Text     *string          `parser:"| @String"`
	Word     *string          `parser:"| @Ident"`
}

// ColorLiteral matches "rgb(r, g, b)".
type ColorLiteral struct {
	R float64 `parser:"@Number ','"`
	G float64 `parser:"@Number ','"`
	B float64 `parser:"@Number"`
}

// PositionLiteral matches "(x, y)".
type PositionLiteral struct {
	X float64 `parser:"@Number ','"`
	Y float64 `parser:"@Number"`
}

var assignParser = participle.MustBuild[Assignment](
	participle.Lexer(assignLexer),
	participle.Unquote("String"),
)

// ParseAssignment parses one assignment literal.
func ParseAssignment(text string) (*Assignment, error) {
	a, err := assignParser.ParseString("", text)
	if err != nil {
		return nil, oops.Code(frei0r.CodeParamParse).
			With("assignment", text).
			Wrapf(err, "parsing parameter assignment")
	}
	a.Component = strings.ToLower(a.Component)
	return a, nil
}

// ParseAssignments parses every literal, stopping at the first bad one.
func ParseAssignments(texts []string) ([]*Assignment, error) {
	out := make([]*Assignment, 0, len(texts))
	for _, text := range texts {
		a, err := ParseAssignment(text)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (a *Assignment) String() string {
	target := a.Name
	if a.Component != "" {
		target += "." + a.Component
	}
	return target + "=" + a.Value.String()
}

func (l *Literal) String() string {
	switch {
	case l.Color != nil:
		return fmt.Sprintf("rgb(%g, %g, %g)", l.Color.R, l.Color.G, l.Color.B)
	case l.Position != nil:
		return fmt.Sprintf("(%g, %g)", l.Position.X, l.Position.Y)
	case l.Bool != nil:
		return *l.Bool
	case l.Number != nil:
		return fmt.Sprintf("%g", *l.Number)
	case l.Text != nil:
		return fmt.Sprintf("%q", *l.Text)
	case l.Word != nil:
		return *l.Word
	default:
		return ""
	}
}

// SanitizeName turns a parameter name into an identifier by replacing
// spaces with underscores.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// ParamKey is the sanitized name prefixed with "p", so names that start
// with a digit still make an identifier.
func ParamKey(name string) string {
	return "p" + SanitizeName(name)
}

// Edit is an assignment resolved against a parameter schema.
type Edit struct {
	Index int
	Param frei0r.ParamInfo
	// Value is the whole new value when Component is empty.
	Value frei0r.Value
	// Component is "r", "g", "b", "x" or "y" for a single-component edit
	// carried in Scalar.
	Component string
	Scalar    float64
}

// Queue records the edit in p.
func (e Edit) Queue(p *PendingUpdates) {
	switch e.Component {
	case "":
		p.Set(e.Index, e.Value)
	case "r":
		p.SetColorChannel(e.Index, ChannelR, float32(e.Scalar))
	case "g":
		p.SetColorChannel(e.Index, ChannelG, float32(e.Scalar))
	case "b":
		p.SetColorChannel(e.Index, ChannelB, float32(e.Scalar))
	case "x":
		p.SetPositionAxis(e.Index, AxisX, e.Scalar)
	case "y":
		p.SetPositionAxis(e.Index, AxisY, e.Scalar)
	}
}

// FindParam returns the index of the parameter called name, matching the
// declared name, its sanitized form, its key, or any of them
// case-insensitively. Exact matches win.
func FindParam(params []frei0r.ParamInfo, name string) (int, bool) {
	for i, p := range params {
		if p.Name == name || SanitizeName(p.Name) == name {
			return i, true
		}
	}
	for i, p := range params {
		if ParamKey(p.Name) == name {
			return i, true
		}
	}
	for i, p := range params {
		if strings.EqualFold(p.Name, name) ||
			strings.EqualFold(SanitizeName(p.Name), name) ||
			strings.EqualFold(ParamKey(p.Name), name) {
			return i, true
		}
	}
	return -1, false
}

// Resolve binds the assignment to a parameter of params and converts the
// literal to that parameter's kind.
func (a *Assignment) Resolve(params []frei0r.ParamInfo) (Edit, error) {
	index, ok := FindParam(params, a.Name)
	if !ok {
		names := make([]string, len(params))
		for i, p := range params {
			names[i] = SanitizeName(p.Name)
		}
		return Edit{}, oops.Code(frei0r.CodeParamUnknown).
			With("assignment", a.String()).
			With("params", names).
			Errorf("no parameter named %q", a.Name)
	}

	param := params[index]
	edit := Edit{Index: index, Param: param, Component: a.Component}
	mismatch := func() error {
		return oops.Code(frei0r.CodeParamKind).
			With("assignment", a.String()).
			With("param", param.Name).
			With("kind", param.Kind.String()).
			Errorf("%s does not fit %s parameter %q", a.Value, param.Kind, param.Name)
	}

	if a.Component != "" {
		valid := false
		switch param.Kind {
		case frei0r.ParamColor:
			valid = a.Component == "r" || a.Component == "g" || a.Component == "b"
		case frei0r.ParamPosition:
			valid = a.Component == "x" || a.Component == "y"
		}
		if !valid {
			return Edit{}, oops.Code(frei0r.CodeParamKind).
				With("assignment", a.String()).
				With("param", param.Name).
				Errorf("%s parameter %q has no component %q", param.Kind, param.Name, a.Component)
		}
		if a.Value.Number == nil {
			return Edit{}, mismatch()
		}
		edit.Scalar = *a.Value.Number
		return edit, nil
	}

	lit := a.Value
	switch param.Kind {
	case frei0r.ParamBool:
		switch {
		case lit.Bool != nil:
			edit.Value = frei0r.BoolValue(*lit.Bool == "true" || *lit.Bool == "on")
		case lit.Number != nil:
			edit.Value = frei0r.BoolValue(*lit.Number > 0.5)
		default:
			return Edit{}, mismatch()
		}
	case frei0r.ParamDouble:
		if lit.Number == nil {
			return Edit{}, mismatch()
		}
		edit.Value = frei0r.DoubleValue(*lit.Number)
	case frei0r.ParamColor:
		if lit.Color == nil {
			return Edit{}, mismatch()
		}
		edit.Value = frei0r.ColorValue(frei0r.Color{
			R: float32(lit.Color.R),
			G: float32(lit.Color.G),
			B: float32(lit.Color.B),
		})
	case frei0r.ParamPosition:
		if lit.Position == nil {
			return Edit{}, mismatch()
		}
		edit.Value = frei0r.PositionValue(frei0r.Position{X: lit.Position.X, Y: lit.Position.Y})
	case frei0r.ParamString:
		switch {
		case lit.Text != nil:
			edit.Value = frei0r.StringValue(*lit.Text)
		case lit.Word != nil:
			edit.Value = frei0r.StringValue(*lit.Word)
		default:
			return Edit{}, mismatch()
		}
	default:
		return Edit{}, mismatch()
	}
	return edit, nil
}

// ResolveAll resolves every assignment, stopping at the first failure.
func ResolveAll(params []frei0r.ParamInfo, assignments []*Assignment) ([]Edit, error) {
	edits := make([]Edit, 0, len(assignments))
	for _, a := range assignments {
		e, err := a.Resolve(params)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, nil
}
