package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/doclayout-mcp/internal/config"
	"github.com/ironsheep/doclayout-mcp/internal/inference"
	"github.com/ironsheep/doclayout-mcp/internal/layout"
	"github.com/ironsheep/doclayout-mcp/internal/logging"
	"github.com/ironsheep/doclayout-mcp/internal/render"
	"github.com/ironsheep/doclayout-mcp/internal/server"
	"go.uber.org/zap"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("doclayout-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	configPath, err := configPathFromArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "doclayout-mcp: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("doclayout-mcp - MCP server for document layout analysis")
	fmt.Println()
	fmt.Println("Usage: doclayout-mcp [--config path.yaml]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>  YAML configuration file")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables override the file, for example:")
	fmt.Println("  DOCLAYOUT_LOG_LEVEL=debug")
	fmt.Println("  DOCLAYOUT_MODEL_PATH=/models/doclayout_yolo_docstructbench.onnx")
	fmt.Println("  DOCLAYOUT_MODEL_SHARED_LIBRARY_PATH=/usr/lib/libonnxruntime.so")
	fmt.Println("  DOCLAYOUT_PIPELINE_CONF_THRESHOLD=0.25")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

// configPathFromArgs accepts "--config path" and "--config=path".
func configPathFromArgs(args []string) (string, error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s needs a file path", arg)
			}
			return args[i+1], nil
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config="), nil
		default:
			return "", fmt.Errorf("unknown argument %q (see --help)", arg)
		}
	}
	return "", nil
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	logger.Info("starting doclayout-mcp",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.Int("category_table_version", layout.CategoryTableVersion))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layoutCfg, err := cfg.LayoutConfig()
	if err != nil {
		return err
	}
	renderOpts, err := cfg.RenderOptions()
	if err != nil {
		return err
	}
	overlay := render.NewOverlay(renderOpts)

	var backend layout.Inferencer
	if cfg.Model.Path != "" {
		session, err := openSession(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Close(); err != nil {
				logger.Warn("failed to close session", zap.Error(err))
			}
			if err := inference.DestroyEnvironment(); err != nil {
				logger.Warn("failed to destroy ONNX environment", zap.Error(err))
			}
		}()
		backend = session
		logger.Info("model loaded", zap.String("path", cfg.Model.Path))
	} else {
		logger.Warn("no model configured, layout_analyze is unavailable")
	}

	opts := []layout.Option{layout.WithLogger(logger.Named("layout"))}
	if cfg.Render.Enabled {
		opts = append(opts, layout.WithRenderer(overlay))
	}
	pipeline, err := layout.NewPipeline(backend, layoutCfg, opts...)
	if err != nil {
		return err
	}

	srv := server.New(pipeline,
		server.WithLogger(logger.Named("server")),
		server.WithOverlay(overlay),
		server.WithVersion(Version))
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func openSession(cfg *config.Config) (*inference.Session, error) {
	if err := inference.InitEnvironment(cfg.Model.SharedLibraryPath); err != nil {
		return nil, err
	}
	session, err := inference.Open(cfg.InferenceConfig())
	if err != nil {
		_ = inference.DestroyEnvironment()
		return nil, err
	}
	return session, nil
}
