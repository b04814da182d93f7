package layout

import "sort"

// DefaultIoUThreshold is the reference NMS overlap threshold.
const DefaultIoUThreshold = 0.4

// NMSOptions configures duplicate suppression.
type NMSOptions struct {
	IoUThreshold float64
	// InclusiveThreshold suppresses at IoU >= threshold instead of IoU > threshold.
	InclusiveThreshold bool
}

// DefaultNMSOptions returns the reference configuration.
func DefaultNMSOptions() NMSOptions {
	return NMSOptions{IoUThreshold: DefaultIoUThreshold}
}

// IoU computes intersection-over-union of two regions' rectangles.
// A zero-area union yields 0.
func IoU(a, b Region) float64 {
	ra, rb := a.Rect(), b.Rect()
	inter := ra.Intersect(rb)
	interArea := inter.Dx() * inter.Dy()
	union := ra.Dx()*ra.Dy() + rb.Dx()*rb.Dy() - interArea
	if union <= 0 {
		return 0
	}
	return float64(interArea) / float64(union)
}

// Suppress applies greedy non-maximum suppression separately within each
// category. Boxes of different categories never suppress each other.
//
// Survivors are grouped by category index and ordered by descending score
// inside each group; equal scores keep their input order.
func Suppress(regions []Region, opts NMSOptions) []Region {
	if len(regions) == 0 {
		return []Region{}
	}

	groups := make(map[Category][]Region)
	for _, r := range regions {
		groups[r.Category] = append(groups[r.Category], r)
	}

	keys := make([]Category, 0, len(groups))
	for c := range groups {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]Region, 0, len(regions))
	for _, c := range keys {
		out = append(out, suppressGroup(groups[c], opts)...)
	}
	return out
}

func suppressGroup(boxes []Region, opts NMSOptions) []Region {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Score > boxes[j].Score
	})

	suppressed := make([]bool, len(boxes))
	kept := make([]Region, 0, len(boxes))

	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])

		for j := i + 1; j < len(boxes); j++ {
			if suppressed[j] {
				continue
			}
			if overlaps(IoU(boxes[i], boxes[j]), opts) {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func overlaps(iou float64, opts NMSOptions) bool {
	if opts.InclusiveThreshold {
		return iou >= opts.IoUThreshold
	}
	return iou > opts.IoUThreshold
}
