package layout

import "image"

// Point is an integer pixel coordinate in the original image.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Region is one classified area of a document page.
//
// Corners are ordered top-left, top-right, bottom-right, bottom-left and always
// describe a rectangle with positive width and height. Use NewRegion to build one.
type Region struct {
	Corners      [4]Point `json:"corners"`
	Score        float32  `json:"score"`
	Category     Category `json:"category"`
	CategoryName string   `json:"category_name"`
	OCRText      string   `json:"ocr_text,omitempty"`
	HasOCRText   bool     `json:"has_ocr_text"`
}

// NewRegion builds a Region from its top-left and bottom-right corners.
// ok is false when the box would be degenerate.
func NewRegion(x1, y1, x2, y2 int, score float32, c Category) (Region, bool) {
	if x2 <= x1 || y2 <= y1 {
		return Region{}, false
	}
	return Region{
		Corners: [4]Point{
			{X: x1, Y: y1},
			{X: x2, Y: y1},
			{X: x2, Y: y2},
			{X: x1, Y: y2},
		},
		Score:        score,
		Category:     c,
		CategoryName: c.String(),
	}, true
}

// Rect returns the region as an image.Rectangle (TL inclusive, BR exclusive).
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Corners[0].X, r.Corners[0].Y, r.Corners[2].X, r.Corners[2].Y)
}

// Top is the Y coordinate of the top edge.
func (r Region) Top() int { return r.Corners[0].Y }

// Width is the horizontal extent in pixels.
func (r Region) Width() int { return r.Corners[2].X - r.Corners[0].X }

// Height is the vertical extent in pixels.
func (r Region) Height() int { return r.Corners[2].Y - r.Corners[0].Y }

// WithOCRText returns a copy of r carrying recognized text.
func (r Region) WithOCRText(text string) Region {
	r.OCRText = text
	r.HasOCRText = true
	return r
}

// TransformParams records how an image was letterboxed so that detections can
// be mapped back into original image coordinates.
type TransformParams struct {
	Gain           float64 `json:"gain"`
	PadLeft        int     `json:"pad_left"`
	PadTop         int     `json:"pad_top"`
	PadRight       int     `json:"pad_right"`
	PadBottom      int     `json:"pad_bottom"`
	ResizedWidth   int     `json:"resized_width"`
	ResizedHeight  int     `json:"resized_height"`
	OriginalWidth  int     `json:"original_width"`
	OriginalHeight int     `json:"original_height"`
}

// Tensor is a dense row-major float32 buffer with its shape.
type Tensor struct {
	Shape []int64   `json:"shape"`
	Data  []float32 `json:"data"`
}
