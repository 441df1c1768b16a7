package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/event"
	"github.com/chaos-io/cutout/imgproc"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/storage"
	"github.com/chaos-io/cutout/telemetry"
	"github.com/chaos-io/cutout/util"
)

// 命令行参数 -> 配置项
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"log-format":    "log_format",
	"bucket":        "bucket",
	"output-bucket": "output_bucket",
	"addr":          "server_addr",
	"enhance":       "enhance",
	"trim":          "trim",
	"canvas-size":   "canvas_size",
	"rembg-url":     "rembg_url",
	"rembg-model":   "rembg_model",
	"rembg-backend": "rembg_backend",
	"storage":       "storage",
	"local-root":    "local_root",
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func setup(ctx context.Context, cmd *cobra.Command, cfgFile string) (*app, error) {
	v, err := config.New()
	if err != nil {
		return nil, err
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}
	if err := config.ReadFile(v, cfgFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := util.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.OtelEndpoint,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func (a *app) store(ctx context.Context) (storage.ObjectStore, error) {
	switch a.cfg.Storage {
	case config.StorageLocal:
		return storage.NewLocalStore(a.cfg.LocalRoot, a.cfg.MaxInputBytes), nil
	default:
		client, err := storage.NewS3Client(ctx, storage.S3Options{
			Region:       a.cfg.S3Region,
			Endpoint:     a.cfg.S3Endpoint,
			UsePathStyle: a.cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, a.cfg.MaxInputBytes), nil
	}
}

func (a *app) remover() rembg.Remover {
	if a.cfg.RembgBackend == config.RembgNone {
		a.logger.Warn("background removal disabled, images pass through unchanged")
		return rembg.NewPassthrough()
	}
	return rembg.NewHTTPRemover(a.cfg.RembgURL, a.cfg.RembgModel, a.cfg.RembgTimeout, rembg.WithLogger(a.logger))
}

func (a *app) processor(store storage.ObjectStore, remover rembg.Remover) *segment.Processor {
	return segment.NewProcessor(store, remover, processorOptions(a.cfg), a.logger)
}

func processorOptions(cfg *config.Config) segment.Options {
	return segment.Options{
		FallbackBucket:    cfg.Bucket,
		OutputBucket:      cfg.OutputBucket,
		Keys:              event.NewKeyDeriver(cfg.SourcePrefix, cfg.ProcessedPrefix, cfg.FlattenKeys),
		SkipProcessed:     cfg.SkipProcessed,
		MaxInputDimension: cfg.MaxInputDimension,
		Trim:              cfg.Trim,
		TrimThreshold:     cfg.TrimThreshold,
		Enhance:           cfg.Enhance,
		EnhanceOptions: imgproc.EnhanceOptions{
			Size:             cfg.CanvasSize,
			Brightness:       cfg.Brightness,
			Saturation:       cfg.Saturation,
			SharpenRadius:    cfg.SharpenRadius,
			SharpenPercent:   cfg.SharpenPercent,
			SharpenThreshold: cfg.SharpenThreshold,
		},
	}
}
