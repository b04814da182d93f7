// Package config loads server settings from an optional YAML file, DOCLAYOUT_*
// environment variables and built-in defaults, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/doclayout-mcp/internal/inference"
	"github.com/ironsheep/doclayout-mcp/internal/layout"
	"github.com/ironsheep/doclayout-mcp/internal/render"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOCLAYOUT_PIPELINE_CONF_THRESHOLD.
const EnvPrefix = "DOCLAYOUT"

// Config is the complete server configuration, one section per concern.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Model    ModelConfig    `mapstructure:"model"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Render   RenderConfig   `mapstructure:"render"`
}

// LogConfig selects the zap level ("debug", "info", ...) and the output
// format ("json" or "console").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig locates the ONNX model and the runtime library and sizes the
// inference session.
type ModelConfig struct {
	// Path to the .onnx file. Empty runs the server without a backend; only
	// the tools that take a raw tensor work then.
	Path              string `mapstructure:"path"`
	SharedLibraryPath string `mapstructure:"shared_library_path"`
	ClassCount        int    `mapstructure:"class_count"`
	MaxDetections     int    `mapstructure:"max_detections"`
	IntraOpThreads    int    `mapstructure:"intra_op_threads"`
	InterOpThreads    int    `mapstructure:"inter_op_threads"`
}

// PipelineConfig holds the letterbox and post-processing parameters.
type PipelineConfig struct {
	InputWidth    int     `mapstructure:"input_width"`
	InputHeight   int     `mapstructure:"input_height"`
	ConfThreshold float64 `mapstructure:"conf_threshold"`
	IoUThreshold  float64 `mapstructure:"iou_threshold"`
	SizeRounding  string  `mapstructure:"size_rounding"`
	PadMode       string  `mapstructure:"pad_mode"`
	InclusiveNMS  bool    `mapstructure:"inclusive_nms"`
}

// RenderConfig controls the overlay drawn on analyzed pages.
type RenderConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Alpha       float64 `mapstructure:"alpha"`
	BorderWidth int     `mapstructure:"border_width"`
	Labels      bool    `mapstructure:"labels"`
	// Palette maps category names to hex colors.
	Palette map[string]string `mapstructure:"palette"`
}

// Load reads configPath (skipped when empty), applies environment overrides
// and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("model.path", "")
	v.SetDefault("model.shared_library_path", "")
	v.SetDefault("model.class_count", layout.NumCategories)
	v.SetDefault("model.max_detections", inference.DefaultMaxDetections)
	v.SetDefault("model.intra_op_threads", 0)
	v.SetDefault("model.inter_op_threads", 0)

	v.SetDefault("pipeline.input_width", layout.DefaultInputSize)
	v.SetDefault("pipeline.input_height", layout.DefaultInputSize)
	v.SetDefault("pipeline.conf_threshold", layout.DefaultConfThreshold)
	v.SetDefault("pipeline.iou_threshold", layout.DefaultIoUThreshold)
	v.SetDefault("pipeline.size_rounding", "round")
	v.SetDefault("pipeline.pad_mode", "biased")
	v.SetDefault("pipeline.inclusive_nms", false)

	v.SetDefault("render.enabled", true)
	v.SetDefault("render.alpha", render.DefaultAlpha)
	v.SetDefault("render.border_width", render.DefaultBorderWidth)
	v.SetDefault("render.labels", true)
	v.SetDefault("render.palette", map[string]string{})
}

// Validate checks value ranges and enum spellings.
func (c *Config) Validate() error {
	var errs []error
	p := c.Pipeline
	if p.InputWidth <= 0 || p.InputHeight <= 0 {
		errs = append(errs, fmt.Errorf("pipeline input size %dx%d must be positive", p.InputWidth, p.InputHeight))
	}
	if p.ConfThreshold < 0 || p.ConfThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.conf_threshold %v outside [0,1]", p.ConfThreshold))
	}
	if p.IoUThreshold < 0 || p.IoUThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.iou_threshold %v outside [0,1]", p.IoUThreshold))
	}
	if _, err := layout.ParseSizeRounding(p.SizeRounding); err != nil {
		errs = append(errs, err)
	}
	if _, err := layout.ParsePadMode(p.PadMode); err != nil {
		errs = append(errs, err)
	}
	if c.Render.Alpha < 0 || c.Render.Alpha > 1 {
		errs = append(errs, fmt.Errorf("render.alpha %v outside [0,1]", c.Render.Alpha))
	}
	if c.Render.BorderWidth < 0 {
		errs = append(errs, fmt.Errorf("render.border_width %d is negative", c.Render.BorderWidth))
	}
	if _, err := render.DefaultPalette().WithOverrides(c.Render.Palette); err != nil {
		errs = append(errs, err)
	}
	if c.Model.Path != "" {
		if err := layout.ValidateClassCount(c.Model.ClassCount); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LayoutConfig converts the pipeline section into layout parameters.
func (c *Config) LayoutConfig() (layout.Config, error) {
	rounding, err := layout.ParseSizeRounding(c.Pipeline.SizeRounding)
	if err != nil {
		return layout.Config{}, err
	}
	pad, err := layout.ParsePadMode(c.Pipeline.PadMode)
	if err != nil {
		return layout.Config{}, err
	}
	return layout.Config{
		Letterbox: layout.LetterboxOptions{
			Width:        c.Pipeline.InputWidth,
			Height:       c.Pipeline.InputHeight,
			SizeRounding: rounding,
			PadMode:      pad,
		},
		ConfThreshold: float32(c.Pipeline.ConfThreshold),
		NMS: layout.NMSOptions{
			IoUThreshold:       c.Pipeline.IoUThreshold,
			InclusiveThreshold: c.Pipeline.InclusiveNMS,
		},
	}, nil
}

// InferenceConfig returns the model settings sized to the letterbox target.
func (c *Config) InferenceConfig() inference.Config {
	return inference.Config{
		ModelPath:      c.Model.Path,
		InputWidth:     c.Pipeline.InputWidth,
		InputHeight:    c.Pipeline.InputHeight,
		MaxDetections:  c.Model.MaxDetections,
		ClassCount:     c.Model.ClassCount,
		IntraOpThreads: c.Model.IntraOpThreads,
		InterOpThreads: c.Model.InterOpThreads,
	}
}

// RenderOptions builds overlay options, applying palette overrides.
func (c *Config) RenderOptions() (render.Options, error) {
	palette, err := render.DefaultPalette().WithOverrides(c.Render.Palette)
	if err != nil {
		return render.Options{}, err
	}
	return render.Options{
		Alpha:       c.Render.Alpha,
		BorderWidth: c.Render.BorderWidth,
		Labels:      c.Render.Labels,
		Palette:     palette,
	}, nil
}
