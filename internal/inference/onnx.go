// Package inference runs the DocLayout detector through ONNX Runtime and
// exposes it to the layout pipeline as a layout.Inferencer.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/ironsheep/doclayout-mcp/internal/layout"
	ort "github.com/yalue/onnxruntime_go"
)

// DefaultMaxDetections is the row count of the exported model's output0.
const DefaultMaxDetections = 300

// ErrClosed is returned by Infer after Close.
var ErrClosed = errors.New("inference session closed")

// Config describes the model to load.
type Config struct {
	ModelPath string
	// InputWidth and InputHeight must match the letterbox target.
	InputWidth  int
	InputHeight int
	// MaxDetections is N in the [1, N, 6] output tensor.
	MaxDetections int
	// ClassCount is the number of classes the model was trained on. It is
	// reported to the pipeline for validation against the category table.
	ClassCount int
	// Threads of 0 mean one per CPU.
	IntraOpThreads int
	InterOpThreads int
}

func (c Config) validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is empty")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid model input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.MaxDetections <= 0 {
		return fmt.Errorf("invalid max detections %d", c.MaxDetections)
	}
	if c.ClassCount <= 0 {
		return fmt.Errorf("invalid class count %d", c.ClassCount)
	}
	return nil
}

func (c Config) inputShape() ort.Shape {
	return ort.NewShape(1, 3, int64(c.InputHeight), int64(c.InputWidth))
}

func (c Config) outputShape() ort.Shape {
	return ort.NewShape(1, int64(c.MaxDetections), layout.DetectionColumns)
}

func threads(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// InitEnvironment loads the ONNX Runtime shared library. It must be called
// once per process before Open.
func InitEnvironment(sharedLibraryPath string) error {
	if sharedLibraryPath != "" {
		ort.SetSharedLibraryPath(sharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ONNX environment: %w", err)
	}
	return nil
}

// DestroyEnvironment releases the runtime loaded by InitEnvironment.
func DestroyEnvironment() error {
	return ort.DestroyEnvironment()
}

// Session is a loaded detector. Input and output tensors are bound once at
// load time, so Infer calls are serialized.
type Session struct {
	cfg Config

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

// Open loads the model described by cfg.
func Open(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(threads(cfg.IntraOpThreads)); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(threads(cfg.InterOpThreads)); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](cfg.inputShape())
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](cfg.outputShape())
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &Session{
		cfg:     cfg,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Ready reports whether the session can run.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil && !s.closed
}

// ClassCount implements layout.ClassCounter.
func (s *Session) ClassCount() int { return s.cfg.ClassCount }

// Infer runs the detector on a letterboxed [1, 3, H, W] tensor and returns a
// copy of the [1, N, 6] output.
func (s *Session) Infer(ctx context.Context, in layout.Tensor) (layout.Tensor, error) {
	if err := checkInput(in, s.cfg.inputShape()); err != nil {
		return layout.Tensor{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.session == nil {
		return layout.Tensor{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return layout.Tensor{}, err
	}

	copy(s.input.GetData(), in.Data)
	if err := s.session.Run(); err != nil {
		return layout.Tensor{}, fmt.Errorf("error running session: %w", err)
	}

	return toTensor(s.output.GetShape(), s.output.GetData()), nil
}

// Close releases the session and its tensors. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.session != nil {
		err = s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
	return err
}

func checkInput(in layout.Tensor, want ort.Shape) error {
	if len(in.Shape) != len(want) {
		return fmt.Errorf("input shape %v, model expects %v", in.Shape, want)
	}
	for i := range want {
		if in.Shape[i] != want[i] {
			return fmt.Errorf("input shape %v, model expects %v", in.Shape, want)
		}
	}
	if int64(len(in.Data)) != want.FlattenedSize() {
		return fmt.Errorf("input has %d values, model expects %d", len(in.Data), want.FlattenedSize())
	}
	return nil
}

// toTensor copies the runtime-owned output buffer so the result stays valid
// after the next Run.
func toTensor(shape ort.Shape, data []float32) layout.Tensor {
	t := layout.Tensor{
		Shape: make([]int64, len(shape)),
		Data:  make([]float32, len(data)),
	}
	copy(t.Shape, shape)
	copy(t.Data, data)
	return t
}
