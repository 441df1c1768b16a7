package rembg

import (
	"context"
	"errors"
	"image"
	"image/draw"
)

var ErrRemoval = errors.New("background removal failed")

type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Warmer 需要定期请求来保持模型会话加载的 Remover 实现它
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Passthrough 不做抠图，原图转 NRGBA 后返回，用于本地调试
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return toNRGBA(img), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
