package layout

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestComputeTransform_Landscape2000x1000(t *testing.T) {
	p, err := ComputeTransform(2000, 1000, DefaultLetterboxOptions())
	if err != nil {
		t.Fatalf("ComputeTransform failed: %v", err)
	}

	if math.Abs(p.Gain-0.512) > 1e-6 {
		t.Errorf("gain: got %v, want 0.512", p.Gain)
	}
	if p.ResizedWidth != 1024 || p.ResizedHeight != 512 {
		t.Errorf("resized: got %dx%d, want 1024x512", p.ResizedWidth, p.ResizedHeight)
	}
	want := [4]int{0, 256, 0, 256}
	got := [4]int{p.PadLeft, p.PadTop, p.PadRight, p.PadBottom}
	if got != want {
		t.Errorf("pads (l,t,r,b): got %v, want %v", got, want)
	}
	if p.OriginalWidth != 2000 || p.OriginalHeight != 1000 {
		t.Errorf("original: got %dx%d", p.OriginalWidth, p.OriginalHeight)
	}
}

func TestComputeTransform_Variants(t *testing.T) {
	// 1000x999 into 1024x1024: gain 1.024, exact height 1022.976.
	tests := []struct {
		name       string
		rounding   SizeRounding
		pad        PadMode
		wantH      int
		wantTop    int
		wantBottom int
	}{
		{"round biased", RoundSize, PadBiased, 1023, 0, 1},
		{"round mirrored", RoundSize, PadMirrored, 1023, 0, 0},
		{"truncate biased", TruncateSize, PadBiased, 1022, 1, 1},
		{"truncate mirrored", TruncateSize, PadMirrored, 1022, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultLetterboxOptions()
			opts.SizeRounding = tt.rounding
			opts.PadMode = tt.pad

			p, err := ComputeTransform(1000, 999, opts)
			if err != nil {
				t.Fatalf("ComputeTransform failed: %v", err)
			}
			if p.ResizedWidth != 1024 || p.ResizedHeight != tt.wantH {
				t.Errorf("resized: got %dx%d, want 1024x%d", p.ResizedWidth, p.ResizedHeight, tt.wantH)
			}
			if p.PadTop != tt.wantTop || p.PadBottom != tt.wantBottom {
				t.Errorf("pad top/bottom: got %d/%d, want %d/%d", p.PadTop, p.PadBottom, tt.wantTop, tt.wantBottom)
			}
		})
	}
}

func TestComputeTransform_Portrait(t *testing.T) {
	p, err := ComputeTransform(1000, 2000, DefaultLetterboxOptions())
	if err != nil {
		t.Fatalf("ComputeTransform failed: %v", err)
	}
	if p.ResizedWidth != 512 || p.ResizedHeight != 1024 {
		t.Errorf("resized: got %dx%d, want 512x1024", p.ResizedWidth, p.ResizedHeight)
	}
	if p.PadLeft != 256 || p.PadRight != 256 || p.PadTop != 0 || p.PadBottom != 0 {
		t.Errorf("pads: got %+v", p)
	}
}

func TestComputeTransform_ExtremeAspect(t *testing.T) {
	p, err := ComputeTransform(100000, 10, DefaultLetterboxOptions())
	if err != nil {
		t.Fatalf("ComputeTransform failed: %v", err)
	}
	if p.ResizedHeight < 1 {
		t.Errorf("resized height collapsed to %d", p.ResizedHeight)
	}
	if p.PadTop+p.ResizedHeight+p.PadBottom != 1024 {
		t.Errorf("canvas height %d, want 1024", p.PadTop+p.ResizedHeight+p.PadBottom)
	}
}

func TestComputeTransform_Invalid(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		opts LetterboxOptions
	}{
		{"zero width", 0, 10, DefaultLetterboxOptions()},
		{"zero height", 10, 0, DefaultLetterboxOptions()},
		{"negative", -5, 10, DefaultLetterboxOptions()},
		{"zero target", 10, 10, LetterboxOptions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeTransform(tt.w, tt.h, tt.opts)
			if !errors.Is(err, ErrInvalidImage) {
				t.Errorf("got %v, want ErrInvalidImage", err)
			}
		})
	}
}

func TestTransform_Invertibility(t *testing.T) {
	sizes := [][2]int{{2000, 1000}, {1000, 2000}, {640, 480}, {1024, 1024}, {333, 777}, {4961, 7016}, {17, 3}}
	for _, opts := range []LetterboxOptions{
		DefaultLetterboxOptions(),
		{Width: 1024, Height: 1024, SizeRounding: TruncateSize, PadMode: PadMirrored},
		{Width: 800, Height: 608},
	} {
		for _, sz := range sizes {
			w, h := sz[0], sz[1]
			p, err := ComputeTransform(w, h, opts)
			if err != nil {
				t.Fatalf("%dx%d: %v", w, h, err)
			}

			// Corners of boxes fully inside the source image.
			points := [][2]float64{{0, 0}, {float64(w), float64(h)}, {float64(w) / 3, float64(h) / 2}, {float64(w) - 1, 1}}
			for _, pt := range points {
				ix, iy := p.ToInput(pt[0], pt[1])
				ox, oy := p.ToOriginal(ix, iy)
				if math.Abs(ox-pt[0]) > 1 || math.Abs(oy-pt[1]) > 1 {
					t.Errorf("%dx%d %+v: (%v,%v) -> (%v,%v) -> (%v,%v)", w, h, opts, pt[0], pt[1], ix, iy, ox, oy)
				}
			}

			// The far corner of the source lands on the far edge of the
			// resized content, within a pixel.
			ix, iy := p.ToInput(float64(w), float64(h))
			if math.Abs(ix-float64(p.PadLeft+p.ResizedWidth)) > 1 || math.Abs(iy-float64(p.PadTop+p.ResizedHeight)) > 1 {
				t.Errorf("%dx%d: far corner maps to (%v,%v), content ends at (%d,%d)",
					w, h, ix, iy, p.PadLeft+p.ResizedWidth, p.PadTop+p.ResizedHeight)
			}
		}
	}
}

func TestLetterboxImage_PaddingAndContent(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	canvas, p, err := LetterboxImage(solidImage(2000, 1000, red), DefaultLetterboxOptions())
	if err != nil {
		t.Fatalf("LetterboxImage failed: %v", err)
	}

	if b := canvas.Bounds(); b.Dx() != 1024 || b.Dy() != 1024 {
		t.Fatalf("canvas %dx%d, want 1024x1024", b.Dx(), b.Dy())
	}

	gray := color.NRGBA{PadFill, PadFill, PadFill, 255}
	for _, pt := range []image.Point{{0, 0}, {1023, 0}, {512, p.PadTop - 1}, {512, 1023}} {
		if got := canvas.NRGBAAt(pt.X, pt.Y); got != gray {
			t.Errorf("pad pixel %v: got %v, want %v", pt, got, gray)
		}
	}
	for _, pt := range []image.Point{{512, 512}, {0, p.PadTop}, {1023, p.PadTop + p.ResizedHeight - 1}} {
		if got := canvas.NRGBAAt(pt.X, pt.Y); got != red {
			t.Errorf("content pixel %v: got %v, want %v", pt, got, red)
		}
	}
}

func TestLetterboxImage_MirroredForceResize(t *testing.T) {
	opts := DefaultLetterboxOptions()
	opts.PadMode = PadMirrored

	canvas, p, err := LetterboxImage(solidImage(1000, 999, color.NRGBA{A: 255}), opts)
	if err != nil {
		t.Fatalf("LetterboxImage failed: %v", err)
	}
	if p.PadTop+p.ResizedHeight+p.PadBottom == 1024 {
		t.Fatal("test expects a canvas one pixel short")
	}
	if b := canvas.Bounds(); b.Dx() != 1024 || b.Dy() != 1024 {
		t.Errorf("canvas %dx%d, want 1024x1024 after force resize", b.Dx(), b.Dy())
	}
}

func TestLetterbox_Tensor(t *testing.T) {
	opts := LetterboxOptions{Width: 64, Height: 32}
	tensor, p, err := Letterbox(solidImage(64, 16, color.NRGBA{R: 255, G: 0, B: 51, A: 255}), opts)
	if err != nil {
		t.Fatalf("Letterbox failed: %v", err)
	}

	wantShape := []int64{1, 3, 32, 64}
	for i := range wantShape {
		if tensor.Shape[i] != wantShape[i] {
			t.Fatalf("shape: got %v, want %v", tensor.Shape, wantShape)
		}
	}
	if len(tensor.Data) != 3*32*64 {
		t.Fatalf("data length %d", len(tensor.Data))
	}
	if p.Gain != 1 || p.PadTop != 8 || p.PadBottom != 8 {
		t.Errorf("transform: got %+v", p)
	}

	plane := 32 * 64
	at := func(c, y, x int) float32 { return tensor.Data[c*plane+y*64+x] }

	// Padding row.
	pad := float32(PadFill) / 255
	for c := 0; c < 3; c++ {
		if got := at(c, 0, 0); math.Abs(float64(got-pad)) > 1e-6 {
			t.Errorf("pad channel %d: got %v, want %v", c, got, pad)
		}
	}
	// Content row, RGB order.
	if at(0, 16, 10) != 1 || at(1, 16, 10) != 0 || math.Abs(float64(at(2, 16, 10)-0.2)) > 1e-6 {
		t.Errorf("content: got (%v,%v,%v), want (1,0,0.2)", at(0, 16, 10), at(1, 16, 10), at(2, 16, 10))
	}
}

func TestLetterbox_Invalid(t *testing.T) {
	_, _, err := Letterbox(image.NewNRGBA(image.Rect(0, 0, 0, 0)), DefaultLetterboxOptions())
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("got %v, want ErrInvalidImage", err)
	}
}

func TestNormalizeCHW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 255, B: 51, A: 0})

	got := NormalizeCHW(img)
	want := []float32{1, 0, 0, 1, 0, 0.2}
	for i := range want {
		if math.Abs(float64(got.Data[i]-want[i])) > 1e-6 {
			t.Errorf("data[%d]: got %v, want %v", i, got.Data[i], want[i])
		}
	}
}

func TestParseVariants(t *testing.T) {
	if r, err := ParseSizeRounding("truncate"); err != nil || r != TruncateSize {
		t.Errorf("truncate: got %v, %v", r, err)
	}
	if r, err := ParseSizeRounding(""); err != nil || r != RoundSize {
		t.Errorf("empty: got %v, %v", r, err)
	}
	if _, err := ParseSizeRounding("ceil"); err == nil {
		t.Error("ceil should be rejected")
	}
	if m, err := ParsePadMode("mirrored"); err != nil || m != PadMirrored {
		t.Errorf("mirrored: got %v, %v", m, err)
	}
	if _, err := ParsePadMode("centered"); err == nil {
		t.Error("centered should be rejected")
	}
}
