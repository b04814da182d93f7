package render

import (
	"image/color"
	"testing"

	"github.com/ironsheep/doclayout-mcp/internal/layout"
)

func TestDefaultPalette_Deterministic(t *testing.T) {
	a, b := DefaultPalette(), DefaultPalette()
	seen := make(map[color.RGBA]layout.Category)
	for i := 0; i < layout.NumCategories; i++ {
		c := layout.Category(i)
		if a.Color(c) != b.Color(c) {
			t.Errorf("%v: palettes disagree", c)
		}
		if other, dup := seen[a.Color(c)]; dup {
			t.Errorf("%v and %v share color %v", c, other, a.Color(c))
		}
		seen[a.Color(c)] = c
		if a.Color(c).A != 255 {
			t.Errorf("%v: color is not opaque", c)
		}
	}
}

func TestDefaultPalette_Unknown(t *testing.T) {
	p := DefaultPalette()
	if got := p.Hex(layout.Unknown); got != "#808080" {
		t.Errorf("unknown: got %s, want #808080", got)
	}
	if p.Color(layout.Category(42)) != p.Color(layout.Unknown) {
		t.Error("out of range categories should use the unknown color")
	}
}

func TestPalette_WithOverrides(t *testing.T) {
	base := DefaultPalette()
	before := base.Hex(layout.Figure)

	p, err := base.WithOverrides(map[string]string{
		"figure":     "#2196F3",
		"plain_text": "#000000",
		"unknown":    "#ffffff",
	})
	if err != nil {
		t.Fatalf("WithOverrides failed: %v", err)
	}

	tests := []struct {
		c    layout.Category
		want string
	}{
		{layout.Figure, "#2196f3"},
		{layout.PlainText, "#000000"},
		{layout.Unknown, "#ffffff"},
		{layout.Title, base.Hex(layout.Title)},
	}
	for _, tt := range tests {
		if got := p.Hex(tt.c); got != tt.want {
			t.Errorf("%v: got %s, want %s", tt.c, got, tt.want)
		}
	}
	if base.Hex(layout.Figure) != before {
		t.Error("WithOverrides modified the receiver")
	}
}

func TestPalette_WithOverridesErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"bad hex":      {"figure": "blue"},
		"unknown name": {"chart": "#ff0000"},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DefaultPalette().WithOverrides(overrides); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
