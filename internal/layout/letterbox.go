package layout

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// DefaultInputSize is the square input edge of the DocLayout network.
const DefaultInputSize = 1024

// PadFill is the gray value used for letterbox padding on every channel.
const PadFill = 114

// ErrInvalidImage is returned for empty images or non-positive target sizes.
var ErrInvalidImage = errors.New("invalid image geometry")

// SizeRounding selects how the scaled image size is rounded.
type SizeRounding int

const (
	// RoundSize rounds half away from zero: newW = round(W*gain).
	RoundSize SizeRounding = iota
	// TruncateSize drops the fraction: newW = int(W*gain).
	TruncateSize
)

// PadMode selects how the total padding is split between the two sides.
type PadMode int

const (
	// PadBiased uses round(d/2-0.1) before and round(d/2+0.1) after, so odd
	// padding puts the extra pixel on the right/bottom.
	PadBiased PadMode = iota
	// PadMirrored uses round(d/2-0.1) on both sides; the canvas may then come
	// up one pixel short and is force-resized to the target.
	PadMirrored
)

// ParseSizeRounding maps "round" and "truncate" to a SizeRounding.
func ParseSizeRounding(s string) (SizeRounding, error) {
	switch s {
	case "", "round":
		return RoundSize, nil
	case "truncate":
		return TruncateSize, nil
	}
	return RoundSize, fmt.Errorf("unknown size rounding %q", s)
}

// ParsePadMode maps "biased" and "mirrored" to a PadMode.
func ParsePadMode(s string) (PadMode, error) {
	switch s {
	case "", "biased":
		return PadBiased, nil
	case "mirrored":
		return PadMirrored, nil
	}
	return PadBiased, fmt.Errorf("unknown pad mode %q", s)
}

// LetterboxOptions configures the preprocessor. The zero value is not usable;
// start from DefaultLetterboxOptions.
type LetterboxOptions struct {
	Width        int
	Height       int
	SizeRounding SizeRounding
	PadMode      PadMode
}

// DefaultLetterboxOptions returns the 1024x1024 reference configuration.
func DefaultLetterboxOptions() LetterboxOptions {
	return LetterboxOptions{
		Width:  DefaultInputSize,
		Height: DefaultInputSize,
	}
}

// ComputeTransform derives the letterbox geometry for a w x h source image.
//
// Arithmetic is done in float32 to reproduce the reference pipeline's rounding
// on borderline sizes.
func ComputeTransform(w, h int, opts LetterboxOptions) (TransformParams, error) {
	if w <= 0 || h <= 0 || opts.Width <= 0 || opts.Height <= 0 {
		return TransformParams{}, fmt.Errorf("%w: source %dx%d, target %dx%d",
			ErrInvalidImage, w, h, opts.Width, opts.Height)
	}

	tw, th := float32(opts.Width), float32(opts.Height)
	gain := tw / float32(w)
	if g := th / float32(h); g < gain {
		gain = g
	}

	sw, sh := float32(w)*gain, float32(h)*gain
	var newW, newH int
	switch opts.SizeRounding {
	case TruncateSize:
		newW, newH = int(sw), int(sh)
	default:
		newW, newH = roundf(sw), roundf(sh)
	}
	// An extreme aspect ratio can round one side away entirely.
	newW = clampInt(newW, 1, opts.Width)
	newH = clampInt(newH, 1, opts.Height)

	dw := float32(opts.Width - newW)
	dh := float32(opts.Height - newH)

	p := TransformParams{
		Gain:           float64(gain),
		PadLeft:        roundf(dw/2 - 0.1),
		PadTop:         roundf(dh/2 - 0.1),
		ResizedWidth:   newW,
		ResizedHeight:  newH,
		OriginalWidth:  w,
		OriginalHeight: h,
	}
	switch opts.PadMode {
	case PadMirrored:
		p.PadRight, p.PadBottom = p.PadLeft, p.PadTop
	default:
		p.PadRight = roundf(dw/2 + 0.1)
		p.PadBottom = roundf(dh/2 + 0.1)
	}
	return p, nil
}

// ToOriginal maps a point from letterboxed input space back to the source image.
// The result is not clipped.
func (p TransformParams) ToOriginal(x, y float64) (float64, float64) {
	return (x - float64(p.PadLeft)) / p.Gain, (y - float64(p.PadTop)) / p.Gain
}

// ToInput maps a source image point into letterboxed input space.
func (p TransformParams) ToInput(x, y float64) (float64, float64) {
	return x*p.Gain + float64(p.PadLeft), y*p.Gain + float64(p.PadTop)
}

// LetterboxImage resizes img into the target canvas with gray padding and
// returns the padded RGB image along with the transform that produced it.
//
// Channel order is taken from img.At; wrap raw BGR buffers in imaging.BGR so the
// swap to RGB happens as pixels are read.
func LetterboxImage(img image.Image, opts LetterboxOptions) (*image.NRGBA, TransformParams, error) {
	b := img.Bounds()
	p, err := ComputeTransform(b.Dx(), b.Dy(), opts)
	if err != nil {
		return nil, TransformParams{}, err
	}

	resized := imaging.Resize(img, p.ResizedWidth, p.ResizedHeight, imaging.Linear)

	canvasW := p.PadLeft + p.ResizedWidth + p.PadRight
	canvasH := p.PadTop + p.ResizedHeight + p.PadBottom
	canvas := imaging.New(canvasW, canvasH, color.NRGBA{R: PadFill, G: PadFill, B: PadFill, A: 255})
	canvas = imaging.Paste(canvas, resized, image.Pt(p.PadLeft, p.PadTop))

	if canvasW != opts.Width || canvasH != opts.Height {
		canvas = imaging.Clone(transform.Resize(canvas, opts.Width, opts.Height, transform.Linear))
	}
	return canvas, p, nil
}

// Letterbox runs the full preprocessor: letterbox, then scale to [0,1] into a
// float32 tensor of shape [1, 3, Height, Width] in RGB channel-first order.
func Letterbox(img image.Image, opts LetterboxOptions) (Tensor, TransformParams, error) {
	canvas, p, err := LetterboxImage(img, opts)
	if err != nil {
		return Tensor{}, TransformParams{}, err
	}
	return NormalizeCHW(canvas), p, nil
}

// NormalizeCHW converts an NRGBA image to a [1,3,H,W] float32 tensor with
// values divided by 255. Alpha is ignored.
func NormalizeCHW(img *image.NRGBA) Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		offset := y * w
		for x := 0; x < w; x++ {
			i := offset + x
			data[i] = float32(row[x*4]) / 255.0
			data[plane+i] = float32(row[x*4+1]) / 255.0
			data[2*plane+i] = float32(row[x*4+2]) / 255.0
		}
	}

	return Tensor{
		Shape: []int64{1, 3, int64(h), int64(w)},
		Data:  data,
	}
}

func roundf(v float32) int {
	return int(math.Round(float64(v)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
