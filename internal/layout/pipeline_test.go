package layout

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBackend struct {
	ready  bool
	output Tensor
	err    error
	panics bool
	inputs []Tensor
}

func (f *fakeBackend) Ready() bool { return f.ready }

func (f *fakeBackend) Infer(ctx context.Context, input Tensor) (Tensor, error) {
	f.inputs = append(f.inputs, input)
	if f.panics {
		panic("backend exploded")
	}
	return f.output, f.err
}

type countedBackend struct {
	fakeBackend
	classes int
}

func (c *countedBackend) ClassCount() int { return c.classes }

type fakeRenderer struct {
	err    error
	panics bool
	calls  int
}

func (r *fakeRenderer) Render(img image.Image, regions []Region) (image.Image, error) {
	r.calls++
	if r.panics {
		panic("renderer exploded")
	}
	if r.err != nil {
		return nil, r.err
	}
	return image.NewNRGBA(img.Bounds()), nil
}

func page() image.Image {
	return solidImage(2000, 1000, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
}

func newTestPipeline(t *testing.T, b Inferencer, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(b, DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func TestAnalyze_EndToEnd(t *testing.T) {
	backend := &fakeBackend{
		ready: true,
		output: detections(
			[6]float32{100, 356, 300, 456, 0.9, 0},
			[6]float32{102, 358, 302, 458, 0.8, 0},
			[6]float32{100, 500, 900, 700, 0.7, 1},
			[6]float32{100, 500, 900, 700, 0.1, 3},
		),
	}
	renderer := &fakeRenderer{}
	core, logs := observer.New(zap.InfoLevel)
	p := newTestPipeline(t, backend, WithRenderer(renderer), WithLogger(zap.New(core)))

	res := p.Analyze(context.Background(), page())

	if !res.OK() {
		t.Fatalf("status %s: %v", res.Status, res.Err)
	}
	if len(backend.inputs) != 1 {
		t.Fatalf("backend called %d times", len(backend.inputs))
	}
	shape := backend.inputs[0].Shape
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 || shape[2] != 1024 || shape[3] != 1024 {
		t.Errorf("input shape: got %v", shape)
	}

	if len(res.Regions) != 2 {
		t.Fatalf("got %d regions, want 2: %+v", len(res.Regions), res.Regions)
	}
	if res.Regions[0].Category != Title || res.Regions[0].Corners[0] != (Point{195, 195}) {
		t.Errorf("first region: %+v", res.Regions[0])
	}
	if res.Regions[1].Category != PlainText {
		t.Errorf("second region: %+v", res.Regions[1])
	}

	if res.Transform.PadTop != 256 || res.Transform.OriginalWidth != 2000 {
		t.Errorf("transform: %+v", res.Transform)
	}
	if res.ElapsedMs < 0 {
		t.Errorf("elapsed: %v", res.ElapsedMs)
	}
	if res.Markdown != Markdown(res.Regions, res.ElapsedMs) {
		t.Error("markdown does not match regions")
	}
	if res.Rendered == nil || renderer.calls != 1 {
		t.Errorf("overlay: rendered=%v calls=%d", res.Rendered != nil, renderer.calls)
	}
	if logs.FilterMessage("layout analysis complete").Len() != 1 {
		t.Error("missing completion log entry")
	}
}

func TestAnalyze_NoBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend Inferencer
	}{
		{"nil", nil},
		{"not ready", &fakeBackend{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestPipeline(t, tt.backend).Analyze(context.Background(), page())
			if !res.Failed() || !errors.Is(res.Err, ErrBackendNotReady) {
				t.Errorf("got %s %v, want failed ErrBackendNotReady", res.Status, res.Err)
			}
			if res.Reason != "inference backend not ready" {
				t.Errorf("reason: %q", res.Reason)
			}
			if res.Markdown != EmptyMarkdown || res.Regions == nil || len(res.Regions) != 0 {
				t.Errorf("failed result should carry empty regions and markdown: %+v", res)
			}
		})
	}
}

func TestAnalyze_InferenceError(t *testing.T) {
	errBoom := errors.New("device lost")
	res := newTestPipeline(t, &fakeBackend{ready: true, err: errBoom}).Analyze(context.Background(), page())

	if !res.Failed() || !errors.Is(res.Err, errBoom) {
		t.Errorf("got %s %v", res.Status, res.Err)
	}
	if res.Transform.Gain == 0 {
		t.Error("failed result should still report the letterbox transform")
	}
}

func TestAnalyze_MalformedTensor(t *testing.T) {
	backend := &fakeBackend{ready: true, output: Tensor{Shape: []int64{1, 300, 5}, Data: make([]float32, 1500)}}
	renderer := &fakeRenderer{}
	res := newTestPipeline(t, backend, WithRenderer(renderer)).Analyze(context.Background(), page())

	if !res.Failed() || !errors.Is(res.Err, ErrMalformedTensor) {
		t.Fatalf("got %s %v, want failed ErrMalformedTensor", res.Status, res.Err)
	}
	if len(res.Regions) != 0 || res.Markdown != EmptyMarkdown {
		t.Errorf("malformed tensor should give no regions: %+v", res)
	}
}

func TestAnalyze_PanicIsContained(t *testing.T) {
	res := newTestPipeline(t, &fakeBackend{ready: true, panics: true}).Analyze(context.Background(), page())
	if !res.Failed() || !errors.Is(res.Err, ErrInternal) {
		t.Errorf("got %s %v, want failed ErrInternal", res.Status, res.Err)
	}
}

func TestAnalyze_InvalidImage(t *testing.T) {
	res := newTestPipeline(t, &fakeBackend{ready: true}).Analyze(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	if !res.Failed() || !errors.Is(res.Err, ErrInvalidImage) {
		t.Errorf("got %s %v, want failed ErrInvalidImage", res.Status, res.Err)
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &fakeBackend{ready: true}
	res := newTestPipeline(t, backend).Analyze(ctx, page())
	if !res.Failed() || !errors.Is(res.Err, context.Canceled) {
		t.Errorf("got %s %v, want context.Canceled", res.Status, res.Err)
	}
	if len(backend.inputs) != 0 {
		t.Error("backend should not run after cancellation")
	}
}

func TestAnalyze_RendererFailureKeepsResult(t *testing.T) {
	output := detections([6]float32{100, 356, 300, 456, 0.9, 0})
	tests := []struct {
		name     string
		renderer *fakeRenderer
		wantErr  error
	}{
		{"error", &fakeRenderer{err: errors.New("no font")}, nil},
		{"panic", &fakeRenderer{panics: true}, ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, &fakeBackend{ready: true, output: output}, WithRenderer(tt.renderer))
			res := p.Analyze(context.Background(), page())

			if !res.OK() || len(res.Regions) != 1 {
				t.Fatalf("render failure changed the result: %s %d regions", res.Status, len(res.Regions))
			}
			if res.RenderErr == nil || res.Rendered != nil {
				t.Errorf("RenderErr=%v Rendered=%v", res.RenderErr, res.Rendered)
			}
			if tt.wantErr != nil && !errors.Is(res.RenderErr, tt.wantErr) {
				t.Errorf("RenderErr: got %v, want %v", res.RenderErr, tt.wantErr)
			}
		})
	}
}

func TestNewPipeline_ClassCount(t *testing.T) {
	if _, err := NewPipeline(&countedBackend{classes: 11}, DefaultConfig()); !errors.Is(err, ErrCategoryMismatch) {
		t.Errorf("got %v, want ErrCategoryMismatch", err)
	}
	if _, err := NewPipeline(&countedBackend{classes: NumCategories}, DefaultConfig()); err != nil {
		t.Errorf("matching class count rejected: %v", err)
	}
}

func TestProcess_WithoutImage(t *testing.T) {
	p := newTestPipeline(t, nil, WithRenderer(&fakeRenderer{}))
	params := landscapeTransform(t)

	res := p.Process(nil, detections([6]float32{100, 356, 300, 456, 0.9, 0}), params)
	if !res.OK() || len(res.Regions) != 1 {
		t.Fatalf("got %s with %d regions", res.Status, len(res.Regions))
	}
	if res.Rendered != nil {
		t.Error("no overlay expected without an image")
	}
	if res.Transform != params {
		t.Errorf("transform: got %+v", res.Transform)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	backend := &fakeBackend{ready: true, output: detections(
		[6]float32{100, 356, 300, 456, 0.9, 0},
		[6]float32{100, 500, 900, 700, 0.7, 1},
	)}
	p := newTestPipeline(t, backend)

	a := p.Analyze(context.Background(), page())
	b := p.Analyze(context.Background(), page())
	if len(a.Regions) != len(b.Regions) {
		t.Fatalf("region counts differ: %d vs %d", len(a.Regions), len(b.Regions))
	}
	for i := range a.Regions {
		if a.Regions[i] != b.Regions[i] {
			t.Errorf("region %d differs: %+v vs %+v", i, a.Regions[i], b.Regions[i])
		}
	}
}

func TestProcess_OversizedShapeFailsSoft(t *testing.T) {
	p := newTestPipeline(t, nil)
	raw := Tensor{Shape: []int64{1, 1 << 62, 6}, Data: make([]float32, 12)}

	res := p.Process(nil, raw, landscapeTransform(t))
	if !res.Failed() || !errors.Is(res.Err, ErrMalformedTensor) {
		t.Errorf("got %s %v, want failed ErrMalformedTensor", res.Status, res.Err)
	}
	if errors.Is(res.Err, ErrInternal) {
		t.Error("oversized shape should not reach the panic guard")
	}
}
