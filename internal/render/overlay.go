package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"github.com/ironsheep/doclayout-mcp/internal/layout"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultAlpha is the opacity of the region fill blended over the page.
const DefaultAlpha = 0.3

// DefaultBorderWidth is the outline thickness in pixels.
const DefaultBorderWidth = 2

// ErrEmptyImage is returned when there is nothing to draw on.
var ErrEmptyImage = errors.New("cannot render onto an empty image")

// Options controls the overlay appearance.
type Options struct {
	Alpha       float64
	BorderWidth int
	Labels      bool
	Palette     *Palette
}

// DefaultOptions returns alpha 0.3, a 2 px border, labels on and the default
// palette.
func DefaultOptions() Options {
	return Options{
		Alpha:       DefaultAlpha,
		BorderWidth: DefaultBorderWidth,
		Labels:      true,
		Palette:     DefaultPalette(),
	}
}

// Render draws regions on a copy of img: a translucent fill per region, an
// opaque outline, and a "name NN%" label on a colored backdrop. img itself is
// never modified.
//
// Region coordinates are taken relative to img.Bounds().Min.
func Render(img image.Image, regions []layout.Region, opts Options) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, fmt.Errorf("overlay alpha %v outside [0,1]", opts.Alpha)
	}
	if opts.Palette == nil {
		opts.Palette = DefaultPalette()
	}

	base := imaging.Clone(img)
	if len(regions) == 0 {
		return base, nil
	}

	mask := imaging.Clone(base)
	for _, r := range regions {
		fill := image.NewUniform(opts.Palette.Color(r.Category))
		draw.Draw(mask, r.Rect(), fill, image.Point{}, draw.Src)
	}
	out := imaging.Clone(blend.Opacity(base, mask, opts.Alpha))

	for _, r := range regions {
		c := opts.Palette.Color(r.Category)
		drawBorder(out, r.Rect(), opts.BorderWidth, c)
		if opts.Labels {
			drawLabel(out, r, c)
		}
	}
	return out, nil
}

// Overlay adapts Render to the pipeline's Renderer interface.
type Overlay struct {
	opts Options
}

// NewOverlay returns a renderer using opts. A nil palette selects the
// default one.
func NewOverlay(opts Options) *Overlay {
	if opts.Palette == nil {
		opts.Palette = DefaultPalette()
	}
	return &Overlay{opts: opts}
}

// Options returns the options the overlay draws with.
func (o *Overlay) Options() Options { return o.opts }

// Render implements layout.Renderer.
func (o *Overlay) Render(img image.Image, regions []layout.Region) (image.Image, error) {
	return Render(img, regions, o.opts)
}

// drawBorder strokes rect with the given thickness, centered on the edge the
// way a thick line would be.
func drawBorder(dst *image.NRGBA, rect image.Rectangle, width int, c color.Color) {
	for k := 0; k < width; k++ {
		outline(dst, rect.Inset(k-width/2), c)
	}
}

func outline(dst *image.NRGBA, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X-1, y, c)
	}
}

// labelText is the caption drawn above a region.
func labelText(r layout.Region) string {
	return fmt.Sprintf("%s %d%%", r.CategoryName, int(r.Score*100))
}

// drawLabel paints the caption above the region's top-left corner, or just
// inside it when there is no room above.
func drawLabel(dst *image.NRGBA, r layout.Region, bg color.Color) {
	face := basicfont.Face7x13
	text := labelText(r)

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()
	width := font.MeasureString(face, text).Ceil()

	tl := r.Corners[0]
	top := tl.Y - height
	if top < dst.Bounds().Min.Y {
		top = tl.Y
	}
	backdrop := image.Rect(tl.X, top, tl.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, backdrop, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(tl.X, top+ascent),
	}
	d.DrawString(text)
}
