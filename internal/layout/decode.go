package layout

import (
	"errors"
	"fmt"
	"math"
)

// DetectionColumns is the row width of the network output:
// x1, y1, x2, y2, confidence, class id.
const DetectionColumns = 6

// DefaultConfThreshold is the reference confidence cut-off.
const DefaultConfThreshold = 0.2

// ErrMalformedTensor is returned when the output tensor is not [1, N, 6] or
// its buffer holds fewer than N*6 values.
var ErrMalformedTensor = errors.New("malformed detection tensor")

// CheckDetectionShape validates a raw output tensor and returns its row count.
func CheckDetectionShape(t Tensor) (int, error) {
	if len(t.Shape) != 3 {
		return 0, fmt.Errorf("%w: expected rank 3, got shape %v", ErrMalformedTensor, t.Shape)
	}
	if t.Shape[2] != DetectionColumns {
		return 0, fmt.Errorf("%w: expected %d columns, got %d", ErrMalformedTensor, DetectionColumns, t.Shape[2])
	}
	if t.Shape[0] != 1 {
		return 0, fmt.Errorf("%w: expected batch size 1, got %d", ErrMalformedTensor, t.Shape[0])
	}
	if t.Shape[1] < 0 {
		return 0, fmt.Errorf("%w: negative row count %d", ErrMalformedTensor, t.Shape[1])
	}
	// Compare against the buffer before multiplying so a huge row count
	// cannot overflow.
	if t.Shape[1] > int64(len(t.Data)/DetectionColumns) {
		return 0, fmt.Errorf("%w: shape %v needs more values than the %d in the buffer",
			ErrMalformedTensor, t.Shape, len(t.Data))
	}
	return int(t.Shape[1]), nil
}

// Decode turns raw detection rows into regions in original image coordinates.
//
// Rows below confThreshold, with a class id outside the category table, with
// non-finite values or that collapse to an empty box after clipping are dropped.
// Accepted regions keep candidate order. A tensor of the wrong shape yields no
// regions and an error wrapping ErrMalformedTensor.
func Decode(t Tensor, p TransformParams, confThreshold float32) ([]Region, error) {
	rows, err := CheckDetectionShape(t)
	if err != nil {
		return []Region{}, err
	}
	if p.Gain <= 0 {
		return []Region{}, fmt.Errorf("%w: gain %v", ErrInvalidImage, p.Gain)
	}

	regions := make([]Region, 0, rows)
	w, h := float64(p.OriginalWidth), float64(p.OriginalHeight)

	for i := 0; i < rows; i++ {
		row := t.Data[i*DetectionColumns : (i+1)*DetectionColumns]

		conf := row[4]
		if !(conf >= confThreshold) { // also rejects NaN
			continue
		}
		classVal := float64(row[5])
		if math.IsNaN(classVal) || classVal < 0 || classVal >= float64(NumCategories) {
			continue
		}
		cat := CategoryFromIndex(int(classVal))

		x1, y1 := p.ToOriginal(float64(row[0]), float64(row[1]))
		x2, y2 := p.ToOriginal(float64(row[2]), float64(row[3]))
		if !finite(x1, y1, x2, y2) {
			continue
		}

		x1, x2 = clip(x1, w), clip(x2, w)
		y1, y2 = clip(y1, h), clip(y2, h)

		region, ok := NewRegion(int(x1), int(y1), int(x2), int(y2), conf, cat)
		if !ok {
			continue
		}
		regions = append(regions, region)
	}
	return regions, nil
}

func clip(v, hi float64) float64 {
	return math.Max(0, math.Min(v, hi))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
