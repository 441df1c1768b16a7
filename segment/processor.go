package segment

import (
	"context"
	"image"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chaos-io/cutout/event"
	"github.com/chaos-io/cutout/imgproc"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/storage"
	"github.com/chaos-io/cutout/telemetry"
	"github.com/chaos-io/cutout/util"
)

const maxLoggedEvent = 2000

type Options struct {
	// FallbackBucket 事件里没有 bucket 时使用
	FallbackBucket string
	// OutputBucket 默认与源 bucket 相同
	OutputBucket  string
	Keys          event.KeyDeriver
	SkipProcessed bool

	MaxInputDimension int
	Trim              bool
	TrimThreshold     float64
	Enhance           bool
	EnhanceOptions    imgproc.EnhanceOptions
}

type Processor struct {
	store   storage.ObjectStore
	remover rembg.Remover
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewProcessor(store storage.ObjectStore, remover rembg.Remover, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Keys.Suffix == nil {
		opts.Keys.Suffix = event.NewSuffix
	}
	return &Processor{
		store:   store,
		remover: remover,
		opts:    opts,
		logger:  logger,
		tracer:  telemetry.Tracer(),
	}
}

// Process 处理一次调用，raw 可以是任意支持的事件格式
func (p *Processor) Process(ctx context.Context, raw []byte) (*Result, error) {
	p.logger.InfoContext(ctx, "received event", "event", util.Truncate(string(raw), maxLoggedEvent))

	src, err := event.Normalize(raw, p.opts.FallbackBucket)
	if err != nil {
		return nil, &StageError{Stage: StageNormalize, Err: err}
	}
	return p.ProcessSource(ctx, src)
}

func (p *Processor) ProcessSource(ctx context.Context, src event.Source) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "segment.Process", trace.WithAttributes(
		attribute.String("cutout.bucket", src.Bucket),
		attribute.String("cutout.key", src.Key),
		attribute.String("cutout.origin", src.Origin),
	))
	defer span.End()

	logger := p.logger.With("bucket", src.Bucket, "key", src.Key)
	defer util.TraceTo(logger, "process done")()

	res := &Result{
		OK:          true,
		Bucket:      src.Bucket,
		InputBucket: src.Bucket,
		InputKey:    src.Key,
	}

	if p.opts.SkipProcessed && p.opts.Keys.IsProcessed(src.Key) {
		logger.InfoContext(ctx, "key already processed, skipping")
		span.SetAttributes(attribute.Bool("cutout.skipped", true))
		res.Skipped = true
		return res, nil
	}

	var data []byte
	err := p.stage(ctx, logger, StageFetch, func(ctx context.Context) error {
		var err error
		data, err = p.store.Get(ctx, src.Bucket, src.Key)
		return err
	})
	if err != nil {
		return nil, p.fail(span, err)
	}

	out, err := p.cutout(ctx, logger, data)
	if err != nil {
		return nil, p.fail(span, err)
	}

	outBucket := p.opts.OutputBucket
	if outBucket == "" {
		outBucket = src.Bucket
	}
	outKey := p.opts.Keys.Derive(src.Key)

	err = p.stage(ctx, logger, StageStore, func(ctx context.Context) error {
		return p.store.Put(ctx, outBucket, outKey, out.png, imgproc.ContentTypePNG)
	})
	if err != nil {
		return nil, p.fail(span, err)
	}

	res.OutputBucket = outBucket
	res.OutputKey = outKey
	res.ProcessedKey = outKey
	res.ContentType = imgproc.ContentTypePNG
	res.Width = out.width
	res.Height = out.height
	res.Bytes = len(out.png)
	res.HasAlpha = out.hasAlpha
	res.Segmentation = &Segmentation{
		Bucket:       outBucket,
		InputKey:     src.Key,
		ProcessedKey: outKey,
	}

	logger.InfoContext(ctx, "stored cutout", "output_bucket", outBucket, "output_key", outKey, "bytes", res.Bytes)
	return res, nil
}

// Output 处理后的 PNG 及其属性
type Output struct {
	PNG      []byte
	Width    int
	Height   int
	HasAlpha bool
}

// Cutout 只跑图片处理部分，不读写存储
func (p *Processor) Cutout(ctx context.Context, data []byte) (*Output, error) {
	out, err := p.cutout(ctx, p.logger, data)
	if err != nil {
		return nil, err
	}
	return &Output{PNG: out.png, Width: out.width, Height: out.height, HasAlpha: out.hasAlpha}, nil
}

type cutoutResult struct {
	png      []byte
	width    int
	height   int
	hasAlpha bool
}

func (p *Processor) cutout(ctx context.Context, logger *slog.Logger, data []byte) (*cutoutResult, error) {
	var img image.Image

	err := p.stage(ctx, logger, StageDecode, func(context.Context) error {
		var err error
		img, err = imgproc.Decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	if p.opts.MaxInputDimension > 0 {
		_ = p.stage(ctx, logger, StageResize, func(context.Context) error {
			img = imgproc.ResizeWithinMax(img, p.opts.MaxInputDimension)
			return nil
		})
	}

	err = p.stage(ctx, logger, StageRemove, func(ctx context.Context) error {
		removed, err := p.remover.Remove(ctx, img)
		if err != nil {
			return err
		}
		img = removed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p.opts.Trim {
		_ = p.stage(ctx, logger, StageTrim, func(context.Context) error {
			trimmed, err := imgproc.TrimToSubject(img, p.opts.TrimThreshold)
			if err != nil {
				logger.WarnContext(ctx, "no subject found, keeping full frame", "error", err)
				return nil
			}
			img = trimmed
			return nil
		})
	}

	if p.opts.Enhance {
		_ = p.stage(ctx, logger, StageEnhance, func(context.Context) error {
			img = imgproc.Enhance(img, p.opts.EnhanceOptions)
			return nil
		})
	}

	var encoded []byte
	err = p.stage(ctx, logger, StageEncode, func(context.Context) error {
		var err error
		encoded, err = imgproc.EncodePNG(img)
		return err
	})
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &cutoutResult{
		png:      encoded,
		width:    b.Dx(),
		height:   b.Dy(),
		hasAlpha: imgproc.HasAlpha(img),
	}, nil
}

// stage 在单独的 span 里执行 fn，并记录耗时
func (p *Processor) stage(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "segment."+name)
	defer span.End()
	defer util.TraceTo(logger, "stage done", "stage", name)()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (p *Processor) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.logger.Error("process failed", "error", err)
	return err
}
