package diagram

import (
	"math"
	"unicode/utf8"
)

// Shape kinds understood by the serializer.
const (
	Circle    = "Circle"
	Rectangle = "Rectangle"
	Equation  = "Equation"
	Text      = "Text"
	Image     = "Image"
)

type propKind int

const (
	propNum propKind = iota
	propVec
	propString
	propColor
)

func (k propKind) String() string {
	switch k {
	case propNum:
		return "a number"
	case propVec:
		return "a vector"
	case propString:
		return "a string"
	default:
		return "a color"
	}
}

var (
	paintProps = map[string]propKind{"fillColor": propColor, "strokeColor": propColor, "strokeWidth": propNum}
	textProps  = map[string]propKind{"center": propVec, "string": propString, "fontSize": propNum, "fillColor": propColor}

	shapeKinds = map[string]map[string]propKind{
		Circle:    with(paintProps, map[string]propKind{"center": propVec, "r": propNum}),
		Rectangle: with(paintProps, map[string]propKind{"center": propVec, "width": propNum, "height": propNum}),
		Equation:  textProps,
		Text:      textProps,
		Image:     {"center": propVec, "width": propNum, "height": propNum, "href": propString},
	}
)

func with(base, extra map[string]propKind) map[string]propKind {
	out := make(map[string]propKind, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Shape is one drawable element. Its geometry is a function of the diagram's variables.
type Shape struct {
	Name string
	Kind string

	center      vecFn
	r           numFn
	width       numFn
	height      numFn
	fontSize    numFn
	strokeWidth numFn
	text        string
	href        string
	fill        Color
	stroke      Color
	seq         int
}

// ShapeInfo describes a compiled shape.
type ShapeInfo struct {
	Name string
	Kind string
}

func (s *Shape) isText() bool {
	return s.Kind == Equation || s.Kind == Text
}

// extent is the axis-aligned half size of a shape; circles keep their radius.
type extent struct {
	c      vec2
	hw, hh float64
	circle bool
	r      float64
}

func (s *Shape) extent(x []float64) extent {
	e := extent{c: s.center(x)}
	if s.Kind == Circle {
		r := s.r(x)
		e.circle, e.r, e.hw, e.hh = true, r, r, r
		return e
	}
	e.hw, e.hh = s.width(x)/2, s.height(x)/2
	return e
}

// radius of the smallest circle around the extent.
func (e extent) radius() float64 {
	if e.circle {
		return e.r
	}
	return math.Hypot(e.hw, e.hh)
}

// textWidth estimates rendered width from the font size and character count.
func textWidth(fontSize numFn, text string) numFn {
	n := float64(utf8.RuneCountInString(text))
	return func(x []float64) float64 { return 0.6 * fontSize(x) * n }
}

// property exposes a shape attribute to style expressions such as x.icon.r.
func (s *Shape) property(name string) (value, bool) {
	switch name {
	case "center":
		return vecValue(s.center, false), true
	case "x":
		c := s.center
		return numValue(func(x []float64) float64 { return c(x).X }, false), true
	case "y":
		c := s.center
		return numValue(func(x []float64) float64 { return c(x).Y }, false), true
	case "r":
		if s.Kind == Circle {
			return numValue(s.r, false), true
		}
	case "width", "height":
		if s.Kind == Circle {
			r := s.r
			return numValue(func(x []float64) float64 { return 2 * r(x) }, false), true
		}
		if name == "width" {
			return numValue(s.width, false), true
		}
		return numValue(s.height, false), true
	case "fontSize":
		if s.isText() {
			return numValue(s.fontSize, false), true
		}
	case "string":
		if s.isText() {
			return strValue(s.text), true
		}
	case "href":
		if s.Kind == Image {
			return strValue(s.href), true
		}
	case "strokeWidth":
		if s.strokeWidth != nil {
			return numValue(s.strokeWidth, false), true
		}
	case "fillColor":
		return value{kind: kindColor, color: s.fill, constant: true}, true
	case "strokeColor":
		return value{kind: kindColor, color: s.stroke, constant: true}, true
	}
	return value{}, false
}

// set assigns a style value to a declared property. It reports false on a kind mismatch.
func (s *Shape) set(name string, kind propKind, v value) bool {
	switch kind {
	case propVec:
		if v.kind != kindVec {
			return false
		}
		s.center = v.vec
	case propNum:
		if v.kind == kindString {
			n, ok := parseLength(v.str)
			if !ok {
				return false
			}
			v = numValue(constNum(n), true)
		}
		if v.kind != kindNum {
			return false
		}
		switch name {
		case "r":
			s.r = v.num
		case "width":
			s.width = v.num
		case "height":
			s.height = v.num
		case "fontSize":
			s.fontSize = v.num
		case "strokeWidth":
			s.strokeWidth = v.num
		}
	case propString:
		if v.kind != kindString {
			return false
		}
		if name == "href" {
			s.href = v.str
		} else {
			s.text = v.str
		}
	case propColor:
		c := v.color
		switch v.kind {
		case kindColor:
		case kindString:
			parsed, ok := parseColor(v.str)
			if !ok {
				return false
			}
			c = parsed
		default:
			return false
		}
		if name == "fillColor" {
			s.fill = c
		} else {
			s.stroke = c
		}
	}
	return true
}

// contains is <= 0 when b lies inside a with the given padding.
func contains(a, b extent, pad float64) float64 {
	d := b.c.sub(a.c)
	if a.circle {
		return d.norm() + b.radius() + pad - a.r
	}
	return math.Max(
		math.Abs(d.X)+b.hw+pad-a.hw,
		math.Abs(d.Y)+b.hh+pad-a.hh,
	)
}

// disjoint is <= 0 when a and b are separated by at least pad.
func disjoint(a, b extent, pad float64) float64 {
	d := b.c.sub(a.c)
	if a.circle && b.circle {
		return a.r + b.r + pad - d.norm()
	}
	return math.Min(
		a.hw+b.hw+pad-math.Abs(d.X),
		a.hh+b.hh+pad-math.Abs(d.Y),
	)
}

// minOverlap is the overlap depth required beyond pad. Tangent shapes do not
// overlap, so disjoint and overlapping on the same pair stay contradictory even
// when both are met only within DefaultOptions.Tolerance.
const minOverlap = 1.5

// overlapping is <= 0 when a and b overlap by at least pad + minOverlap.
func overlapping(a, b extent, pad float64) float64 {
	d := b.c.sub(a.c)
	pad += minOverlap
	if a.circle && b.circle {
		return d.norm() - (a.r + b.r - pad)
	}
	return math.Max(
		math.Abs(d.X)-(a.hw+b.hw-pad),
		math.Abs(d.Y)-(a.hh+b.hh-pad),
	)
}

// onCanvas is <= 0 when the shape lies within [0, w] x [0, h].
func onCanvas(e extent, w, h float64) float64 {
	return math.Max(
		math.Abs(e.c.X-w/2)+e.hw-w/2,
		math.Abs(e.c.Y-h/2)+e.hh-h/2,
	)
}
