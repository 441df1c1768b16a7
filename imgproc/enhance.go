package imgproc

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

type EnhanceOptions struct {
	// Size 输出正方形画布的边长，<= 0 时保持原尺寸
	// 系数为 0 表示不调整
	Size       int
	Brightness float64
	Saturation float64

	SharpenRadius    float64
	SharpenPercent   float64
	SharpenThreshold int
}

func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		Size:             800,
		Brightness:       1.1,
		Saturation:       1.2,
		SharpenRadius:    1.5,
		SharpenPercent:   150,
		SharpenThreshold: 3,
	}
}

// Enhance 把抠好的图片变成
//
//	锐化（unsharp mask）
//	亮度、饱和度微调
//	等比缩放进 Size×Size（不放大）
//	居中放在全透明的 Size×Size 画布上
//
// 每一步都保留原始 alpha
func Enhance(img image.Image, opts EnhanceOptions) *image.NRGBA {
	out := ToNRGBA(img)

	if opts.SharpenRadius > 0 && opts.SharpenPercent > 0 {
		out = unsharpMask(out, opts.SharpenRadius, opts.SharpenPercent, opts.SharpenThreshold)
	}
	if opts.Brightness > 0 && opts.Brightness != 1 {
		out = adjustBrightness(out, opts.Brightness)
	}
	if opts.Saturation > 0 && opts.Saturation != 1 {
		out = adjustSaturation(out, opts.Saturation)
	}
	if opts.Size > 0 {
		out = contain(out, opts.Size)
		out = centerOnCanvas(out, opts.Size)
	}
	return out
}

// unsharpMask 原图加上 (原图 - 高斯模糊) * percent，差值小于 threshold 的像素不动
func unsharpMask(src *image.NRGBA, radius, percent float64, threshold int) *image.NRGBA {
	blurred := imaging.Blur(src, radius)
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			bi := blurred.PixOffset(x, y)
			di := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				orig := int(src.Pix[si+c])
				diff := orig - int(blurred.Pix[bi+c])
				if abs(diff) < threshold {
					dst.Pix[di+c] = uint8(orig)
					continue
				}
				dst.Pix[di+c] = clamp(float64(orig) + float64(diff)*percent/100)
			}
			dst.Pix[di+3] = src.Pix[si+3]
		}
	}
	return dst
}

// adjustBrightness 与黑色混合，相当于每个通道乘 factor
func adjustBrightness(src *image.NRGBA, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp(float64(c.R) * factor),
			G: clamp(float64(c.G) * factor),
			B: clamp(float64(c.B) * factor),
			A: c.A,
		}
	})
}

// adjustSaturation 与灰度图混合，factor=0 为灰度，1 为原图
func adjustSaturation(src *image.NRGBA, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		gray := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		return color.NRGBA{
			R: clamp(gray + (float64(c.R)-gray)*factor),
			G: clamp(gray + (float64(c.G)-gray)*factor),
			B: clamp(gray + (float64(c.B)-gray)*factor),
			A: c.A,
		}
	})
}

// contain 等比缩放到 size×size 以内，只缩小不放大
func contain(src *image.NRGBA, size int) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w <= size && h <= size {
		return src
	}
	return ToNRGBA(resize.Thumbnail(uint(size), uint(size), src, resize.Lanczos3))
}

func centerOnCanvas(src *image.NRGBA, size int) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	b := src.Bounds()
	x := (size - b.Dx()) / 2
	y := (size - b.Dy()) / 2
	draw.Draw(canvas, image.Rect(x, y, x+b.Dx(), y+b.Dy()), src, b.Min, draw.Src)
	return canvas
}

func clamp(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
