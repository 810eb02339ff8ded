package diagram

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// numFn and vecFn evaluate a quantity against the current variable vector.
type (
	numFn func(x []float64) float64
	vecFn func(x []float64) vec2
)

type vec2 struct {
	X, Y float64
}

func (a vec2) add(b vec2) vec2 { return vec2{a.X + b.X, a.Y + b.Y} }
func (a vec2) sub(b vec2) vec2 { return vec2{a.X - b.X, a.Y - b.Y} }
func (a vec2) scale(k float64) vec2 { return vec2{a.X * k, a.Y * k} }
func (a vec2) norm() float64 { return math.Hypot(a.X, a.Y) }
func (a vec2) normSquared() float64 { return a.X*a.X + a.Y*a.Y }

func constNum(v float64) numFn {
	return func([]float64) float64 { return v }
}

func variable(i int) numFn {
	return func(x []float64) float64 { return x[i] }
}

func pair(a, b numFn) vecFn {
	return func(x []float64) vec2 { return vec2{a(x), b(x)} }
}

// hinge turns a constraint g <= 0 into the penalty max(0, g)^2.
func hinge(g numFn) numFn {
	return func(x []float64) float64 {
		v := math.Max(0, g(x))
		return v * v
	}
}

func squared(f numFn) numFn {
	return func(x []float64) float64 {
		v := f(x)
		return v * v
	}
}

type valueKind int

const (
	kindNum valueKind = iota
	kindVec
	kindString
	kindColor
	kindShape
)

func (k valueKind) String() string {
	switch k {
	case kindNum:
		return "number"
	case kindVec:
		return "vector"
	case kindString:
		return "string"
	case kindColor:
		return "color"
	default:
		return "shape"
	}
}

// value is a compiled style term. Numbers and vectors stay symbolic so the
// optimizer can re-evaluate them; strings, colors and shapes are fixed at compile time.
type value struct {
	kind  valueKind
	num   numFn
	vec   vecFn
	str   string
	color Color
	shape *Shape
	// constant is set when num or vec does not depend on any variable.
	constant bool
}

func numValue(f numFn, constant bool) value { return value{kind: kindNum, num: f, constant: constant} }
func vecValue(f vecFn, constant bool) value { return value{kind: kindVec, vec: f, constant: constant} }
func strValue(s string) value { return value{kind: kindString, str: s, constant: true} }

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
	None       bool
}

var noColor = Color{None: true}

// hex renders the color as #rrggbb, or "none".
func (c Color) hex() string {
	if c.None {
		return "none"
	}
	b := func(v float64) int { return int(math.Round(clamp01(v) * 255)) }
	return fmt.Sprintf("#%02x%02x%02x", b(c.R), b(c.G), b(c.B))
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

var namedColors = map[string]Color{
	"black": {A: 1},
	"white": {R: 1, G: 1, B: 1, A: 1},
	"red":   {R: 1, A: 1},
	"green": {G: 0.5, A: 1},
	"blue":  {B: 1, A: 1},
	"gray":  {R: 0.5, G: 0.5, B: 0.5, A: 1},
}

// parseColor accepts "#rgb", "#rrggbb", "#rrggbbaa", a small set of names and "none".
func parseColor(s string) (Color, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "none" || s == "transparent" {
		return noColor, true
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, false
	}
	h := s[1:]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return Color{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return Color{
		R: float64(v>>24&0xff) / 255,
		G: float64(v>>16&0xff) / 255,
		B: float64(v>>8&0xff) / 255,
		A: float64(v&0xff) / 255,
	}, true
}

// hsv converts a hue in [0, 360) with the given saturation and value.
func hsv(h, s, v, alpha float64) Color {
	c := v * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := v - c
	return Color{R: r + m, G: g + m, B: b + m, A: alpha}
}

// formatNum renders coordinates with a fixed precision so identical layouts
// serialize to identical bytes.
func formatNum(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		s = "0.00"
	}
	return s
}

// parseLength accepts a plain number or a pixel length such as "32px".
func parseLength(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
