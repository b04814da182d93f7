package layout

import (
	"errors"
	"image"
)

// Status tags a Result as a successful run or a failed one. A successful run
// may still contain zero regions.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

var (
	// ErrBackendNotReady is reported when no usable inference backend is attached.
	ErrBackendNotReady = errors.New("inference backend not ready")

	// ErrInternal wraps a panic recovered at the pipeline boundary.
	ErrInternal = errors.New("internal pipeline failure")
)

// Result is the outcome of one pipeline invocation. It is not modified after
// it is returned.
type Result struct {
	Status    Status          `json:"status"`
	Err       error           `json:"-"`
	Reason    string          `json:"reason,omitempty"`
	Regions   []Region        `json:"regions"`
	ElapsedMs float64         `json:"elapsed_ms"`
	Transform TransformParams `json:"transform"`
	Markdown  string          `json:"markdown"`

	// Rendered is the overlay image, nil when rendering is disabled or failed.
	Rendered image.Image `json:"-"`
	// RenderErr is set when the overlay could not be produced. It never
	// changes Status.
	RenderErr error `json:"-"`
}

// OK reports whether the pipeline ran to completion.
func (r *Result) OK() bool { return r.Status == StatusOK }

// Failed reports whether the pipeline stopped on an error.
func (r *Result) Failed() bool { return r.Status == StatusFailed }

func failedResult(err error) *Result {
	return &Result{
		Status:   StatusFailed,
		Err:      err,
		Reason:   err.Error(),
		Regions:  []Region{},
		Markdown: EmptyMarkdown,
	}
}
