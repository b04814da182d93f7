package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/ironsheep/doclayout-mcp/internal/layout"
)

// CropResult is a region cut out of a page, ready to return to a client.
type CropResult struct {
	Category    string `json:"category"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion cuts a detected region out of img, pads it by margin pixels on
// every side (clipped to the page) and optionally rescales it.
func CropRegion(img image.Image, r layout.Region, margin int, scale float64) (*image.NRGBA, error) {
	if margin < 0 {
		return nil, fmt.Errorf("negative crop margin %d", margin)
	}
	bounds := img.Bounds()
	rect := r.Rect().Add(bounds.Min).Inset(-margin).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("region (%d,%d)-(%d,%d) lies outside image bounds %v",
			r.Corners[0].X, r.Corners[0].Y, r.Corners[2].X, r.Corners[2].Y, bounds)
	}

	cropped := imaging.Crop(img, rect)

	if scale != 1.0 && scale > 0 {
		w := int(float64(cropped.Bounds().Dx()) * scale)
		h := int(float64(cropped.Bounds().Dy()) * scale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("scale %v shrinks region to nothing", scale)
		}
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return cropped, nil
}

// ExtractRegion crops a region like CropRegion and returns it as base64 PNG.
//
// Figures and tables are usually extracted this way so they can be stored
// next to the markdown report.
func ExtractRegion(img image.Image, r layout.Region, margin int, scale float64) (*CropResult, error) {
	cropped, err := CropRegion(img, r, margin, scale)
	if err != nil {
		return nil, err
	}

	encoded, err := EncodePNG(cropped)
	if err != nil {
		return nil, err
	}

	return &CropResult{
		Category:    r.CategoryName,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// EncodePNG encodes img as PNG and returns it base64 encoded.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SavePNG writes img to path as PNG.
func SavePNG(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
