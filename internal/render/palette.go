package render

import (
	"fmt"
	"image/color"

	"github.com/ironsheep/doclayout-mcp/internal/layout"
	"github.com/lucasb-eyer/go-colorful"
)

// Palette maps each layout category to a fixed color. It is immutable once
// built and safe for concurrent use.
type Palette struct {
	colors  [layout.NumCategories]colorful.Color
	unknown colorful.Color
}

// DefaultPalette spreads the categories evenly around the HSV hue wheel.
// Unknown regions are drawn in mid gray.
func DefaultPalette() *Palette {
	p := &Palette{unknown: colorful.Color{R: 0.5, G: 0.5, B: 0.5}}
	for i := range p.colors {
		hue := float64(i) * 360.0 / float64(layout.NumCategories)
		p.colors[i] = colorful.Hsv(hue, 0.75, 0.9)
	}
	return p
}

// WithOverrides returns a copy of p with some categories recolored.
// Keys are category names ("figure", "plain text" or "plain_text"), values are
// hex colors like "#2196F3".
func (p *Palette) WithOverrides(overrides map[string]string) (*Palette, error) {
	out := *p
	for name, hex := range overrides {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("palette override %q: %w", name, err)
		}
		cat := layout.CategoryFromName(name)
		if cat == layout.Unknown {
			if name != "unknown" {
				return nil, fmt.Errorf("palette override: unknown category %q", name)
			}
			out.unknown = c
			continue
		}
		out.colors[cat] = c
	}
	return &out, nil
}

func (p *Palette) lookup(c layout.Category) colorful.Color {
	if !c.Valid() {
		return p.unknown
	}
	return p.colors[c]
}

// Color returns the opaque RGBA color for a category.
func (p *Palette) Color(c layout.Category) color.RGBA {
	r, g, b := p.lookup(c).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Hex returns the category color as "#rrggbb".
func (p *Palette) Hex(c layout.Category) string {
	return p.lookup(c).Clamped().Hex()
}
