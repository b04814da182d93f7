package imaging

import (
	"fmt"
	"image"
	"image/color"
)

// BGR is a packed 8-bit, 3-channel image stored blue first, the order OpenCV
// and most camera frame buffers use. It implements image.Image; At returns the
// pixel in RGB order, so anything reading through the interface sees the
// channels already swapped.
type BGR struct {
	// Pix holds pixels as B, G, R triplets, row by row.
	Pix []uint8
	// Stride is the distance in bytes between vertically adjacent pixels.
	Stride int
	Rect   image.Rectangle
}

// NewBGR wraps a tightly packed w x h BGR buffer without copying it.
func NewBGR(pix []uint8, w, h int) (*BGR, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid BGR size %dx%d", w, h)
	}
	if len(pix) != w*h*3 {
		return nil, fmt.Errorf("BGR buffer has %d bytes, %dx%d needs %d", len(pix), w, h, w*h*3)
	}
	return &BGR{Pix: pix, Stride: w * 3, Rect: image.Rect(0, 0, w, h)}, nil
}

// ColorModel implements image.Image.
func (p *BGR) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (p *BGR) Bounds() image.Rectangle { return p.Rect }

// At implements image.Image.
func (p *BGR) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	return color.RGBA{R: p.Pix[i+2], G: p.Pix[i+1], B: p.Pix[i], A: 255}
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *BGR) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}
