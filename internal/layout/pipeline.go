package layout

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
)

// Inferencer runs the detection network on a letterboxed input tensor and
// returns its raw [1, N, 6] output.
type Inferencer interface {
	Ready() bool
	Infer(ctx context.Context, input Tensor) (Tensor, error)
}

// ClassCounter is implemented by backends that know how many classes the
// loaded model emits.
type ClassCounter interface {
	ClassCount() int
}

// Renderer draws regions onto a copy of the source image.
type Renderer interface {
	Render(img image.Image, regions []Region) (image.Image, error)
}

// Config holds the post-processing parameters.
type Config struct {
	Letterbox     LetterboxOptions
	ConfThreshold float32
	NMS           NMSOptions
}

// DefaultConfig returns the reference parameters: 1024x1024 input, confidence
// 0.2, IoU 0.4.
func DefaultConfig() Config {
	return Config{
		Letterbox:     DefaultLetterboxOptions(),
		ConfThreshold: DefaultConfThreshold,
		NMS:           DefaultNMSOptions(),
	}
}

// Pipeline wires the preprocessor, an inference backend and the
// post-processing stages together. Its own state is read-only after
// construction; concurrent use is as safe as the backend is.
type Pipeline struct {
	backend  Inferencer
	renderer Renderer
	cfg      Config
	log      *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRenderer enables the overlay stage.
func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// NewPipeline builds a pipeline. backend may be nil, in which case Analyze
// reports ErrBackendNotReady. If the backend declares its class count it is
// checked against the category table.
func NewPipeline(backend Inferencer, cfg Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		backend: backend,
		cfg:     cfg,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if cc, ok := backend.(ClassCounter); ok {
		if err := ValidateClassCount(cc.ClassCount()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Config returns the pipeline's parameters.
func (p *Pipeline) Config() Config { return p.cfg }

// Analyze runs the whole pipeline on img. It never panics and never returns
// nil; failures are reported through Result.Status and Result.Err.
func (p *Pipeline) Analyze(ctx context.Context, img image.Image) *Result {
	start := time.Now()

	if p.backend == nil || !p.backend.Ready() {
		p.log.Warn("layout analysis skipped", zap.Error(ErrBackendNotReady))
		return failedResult(ErrBackendNotReady)
	}
	if err := ctx.Err(); err != nil {
		return failedResult(err)
	}

	var (
		params TransformParams
		raw    Tensor
	)
	err := guard(func() error {
		input, tp, err := Letterbox(img, p.cfg.Letterbox)
		if err != nil {
			return fmt.Errorf("letterbox: %w", err)
		}
		params = tp
		p.log.Debug("letterbox",
			zap.Int("src_w", tp.OriginalWidth),
			zap.Int("src_h", tp.OriginalHeight),
			zap.Float64("gain", tp.Gain),
			zap.Int("new_w", tp.ResizedWidth),
			zap.Int("new_h", tp.ResizedHeight),
			zap.Int("pad_left", tp.PadLeft),
			zap.Int("pad_top", tp.PadTop),
			zap.Int("pad_right", tp.PadRight),
			zap.Int("pad_bottom", tp.PadBottom))

		raw, err = p.backend.Infer(ctx, input)
		if err != nil {
			return fmt.Errorf("inference: %w", err)
		}
		return nil
	})
	if err != nil {
		p.log.Error("layout analysis failed", zap.Error(err))
		res := failedResult(err)
		res.Transform = params
		res.ElapsedMs = msSince(start)
		return res
	}

	return p.postprocess(img, raw, params, start)
}

// Process runs decoding, suppression, markdown and overlay on a raw output
// tensor obtained elsewhere. img is only used for the overlay and may be nil.
func (p *Pipeline) Process(img image.Image, raw Tensor, params TransformParams) *Result {
	return p.postprocess(img, raw, params, time.Now())
}

func (p *Pipeline) postprocess(img image.Image, raw Tensor, params TransformParams, start time.Time) *Result {
	var (
		regions []Region
		decErr  error
	)
	err := guard(func() error {
		regions, decErr = Decode(raw, params, p.cfg.ConfThreshold)
		if decErr != nil {
			p.log.Warn("decode skipped", zap.Error(decErr))
		}
		before := len(regions)
		regions = Suppress(regions, p.cfg.NMS)
		p.log.Debug("suppression",
			zap.Int("before", before),
			zap.Int("after", len(regions)),
			zap.Float64("iou_threshold", p.cfg.NMS.IoUThreshold))
		return nil
	})
	if err != nil {
		p.log.Error("post-processing failed", zap.Error(err))
		res := failedResult(err)
		res.Transform = params
		res.ElapsedMs = msSince(start)
		return res
	}

	elapsed := msSince(start)
	res := &Result{
		Status:    StatusOK,
		Regions:   regions,
		ElapsedMs: elapsed,
		Transform: params,
		Markdown:  Markdown(regions, elapsed),
	}
	if decErr != nil {
		res.Status = StatusFailed
		res.Err = decErr
		res.Reason = decErr.Error()
	}

	if p.renderer != nil && img != nil {
		var rendered image.Image
		rerr := guard(func() error {
			var err error
			rendered, err = p.renderer.Render(img, regions)
			return err
		})
		if rerr != nil {
			p.log.Warn("overlay rendering failed", zap.Error(rerr))
			res.RenderErr = rerr
		} else {
			res.Rendered = rendered
		}
	}

	p.log.Info("layout analysis complete",
		zap.String("status", string(res.Status)),
		zap.Int("regions", len(res.Regions)),
		zap.Float64("elapsed_ms", elapsed))
	return res
}

// guard runs fn and converts a panic into an error wrapping ErrInternal.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return fn()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
