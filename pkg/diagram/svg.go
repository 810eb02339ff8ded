package diagram

import (
	"context"
	"errors"

	"github.com/aretw0/trio/pkg/dom"
)

// Resolver maps a resource reference, such as an image href, to the value
// written into the document.
type Resolver interface {
	Resolve(ctx context.Context, href string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, href string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, href string) (string, error) {
	return f(ctx, href)
}

// NopResolver leaves every reference unchanged.
var NopResolver Resolver = ResolverFunc(func(_ context.Context, href string) (string, error) {
	return href, nil
})

// ToSVG writes a converged diagram into doc and returns the serialized markup.
// References the resolver cannot handle are kept as written in the style program.
func ToSVG(ctx context.Context, d *Diagram, doc *dom.Document, r Resolver) (string, error) {
	if !d.converged {
		return "", serializeErr(CodeNotConverged, "", "diagram has not been optimized")
	}
	if doc.Released() {
		return "", serializeErr(CodeResource, "", "document already released")
	}
	if r == nil {
		r = NopResolver
	}

	root := doc.Root()
	root.SetAttr("width", formatNum(d.width)).
		SetAttr("height", formatNum(d.height)).
		SetAttr("viewBox", "0 0 "+formatNum(d.width)+" "+formatNum(d.height))

	for _, s := range d.shapes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		el, err := element(ctx, doc, s, d.x, r)
		if err != nil {
			return "", err
		}
		if err := root.AppendChild(el); err != nil {
			return "", serializeErr(CodeResource, s.Name, "%v", err)
		}
	}
	return root.OuterXML(), nil
}

var tags = map[string]string{
	Circle:    "circle",
	Rectangle: "rect",
	Equation:  "text",
	Text:      "text",
	Image:     "image",
}

func element(ctx context.Context, doc *dom.Document, s *Shape, x []float64, r Resolver) (*dom.Element, error) {
	el, err := doc.CreateElement(tags[s.Kind])
	if err != nil {
		return nil, serializeErr(CodeResource, s.Name, "%v", err)
	}
	c := s.center(x)

	switch s.Kind {
	case Circle:
		el.SetAttr("cx", formatNum(c.X)).
			SetAttr("cy", formatNum(c.Y)).
			SetAttr("r", formatNum(s.r(x)))
		paint(el, s, x)
	case Rectangle:
		w, h := s.width(x), s.height(x)
		el.SetAttr("x", formatNum(c.X-w/2)).
			SetAttr("y", formatNum(c.Y-h/2)).
			SetAttr("width", formatNum(w)).
			SetAttr("height", formatNum(h))
		paint(el, s, x)
	case Equation, Text:
		el.SetAttr("x", formatNum(c.X)).
			SetAttr("y", formatNum(c.Y)).
			SetAttr("text-anchor", "middle").
			SetAttr("dominant-baseline", "central").
			SetAttr("font-size", formatNum(s.fontSize(x)))
		paint(el, s, x)
		el.SetText(s.text)
	case Image:
		href, err := r.Resolve(ctx, s.href)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			href = s.href
		}
		w, h := s.width(x), s.height(x)
		el.SetAttr("href", href).
			SetAttr("x", formatNum(c.X-w/2)).
			SetAttr("y", formatNum(c.Y-h/2)).
			SetAttr("width", formatNum(w)).
			SetAttr("height", formatNum(h))
	}

	title, err := doc.CreateElement("title")
	if err != nil {
		return nil, serializeErr(CodeResource, s.Name, "%v", err)
	}
	title.SetText(s.Name)
	if err := el.AppendChild(title); err != nil {
		return nil, serializeErr(CodeResource, s.Name, "%v", err)
	}
	return el, nil
}

func paint(el *dom.Element, s *Shape, x []float64) {
	el.SetAttr("fill", s.fill.hex())
	if !s.fill.None && s.fill.A < 1 {
		el.SetAttr("fill-opacity", formatNum(s.fill.A))
	}
	if s.stroke.None || s.strokeWidth == nil {
		return
	}
	el.SetAttr("stroke", s.stroke.hex()).
		SetAttr("stroke-width", formatNum(s.strokeWidth(x)))
	if s.stroke.A < 1 {
		el.SetAttr("stroke-opacity", formatNum(s.stroke.A))
	}
}
