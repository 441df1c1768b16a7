package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	nhttp "github.com/chaos-io/cutout/util/http"
)

const (
	DefaultModel   = "u2net"
	removePath     = "/api/remove"
	warmupSize     = 8
	defaultTimeout = 60 * time.Second
)

// HTTPRemover 调用 rembg server 的 /api/remove 接口抠图
//
//	curl -X POST "$BASE_URL/api/remove" \
//	  -F "file=@my_image.png" \
//	  -F "model=u2net_cloth_seg" -o out.png
type HTTPRemover struct {
	baseURL string
	model   string
	cli     nhttp.IClient
	logger  *slog.Logger
}

type Option func(*HTTPRemover)

func WithClient(cli nhttp.IClient) Option {
	return func(r *HTTPRemover) { r.cli = cli }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *HTTPRemover) { r.logger = l }
}

func NewHTTPRemover(baseURL, model string, timeout time.Duration, opts ...Option) *HTTPRemover {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	r := &HTTPRemover{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		cli:     nhttp.NewHTTPClient(nhttp.WithTimeout(timeout)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HTTPRemover) Model() string {
	return r.model
}

func (r *HTTPRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	body, contentType, err := r.form(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, err)
	}

	var out []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.baseURL + removePath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
		Response:   &out,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("%w: model %s: %w", ErrRemoval, r.model, err)
	}

	r.logger.Debug("get the response", "model", r.model, "status", reqParam.StatusCode, "bytes", len(out))

	result, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrRemoval, err)
	}
	return toNRGBA(result), nil
}

// Warmup 发送一张很小的图片，让服务端加载并保持模型会话
func (r *HTTPRemover) Warmup(ctx context.Context) error {
	img := image.NewNRGBA(image.Rect(0, 0, warmupSize, warmupSize))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
	}
	img.SetNRGBA(warmupSize/2, warmupSize/2, color.NRGBA{A: 255})

	_, err := r.Remove(ctx, img)
	return err
}

func (r *HTTPRemover) form(img image.Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// file 文件字段
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}

	if err := writer.WriteField("model", r.model); err != nil {
		return nil, "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
