package imgproc

import (
	"errors"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

var ErrNoSubject = errors.New("no foreground detected")

func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// HasAlpha 检查 alpha 通道是否真的包含透明信息
// 只要存在非 255（非完全不透明），就认为“已有抠图”
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	src := ToNRGBA(img)
	for i := 3; i < len(src.Pix); i += 4 {
		if src.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// ResizeWithinMax 缩放（最长边 <= maxSize），maxSize <= 0 时不处理
func ResizeWithinMax(img image.Image, maxSize int) *image.NRGBA {
	src := ToNRGBA(img)
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	longest := max(w, h)

	if maxSize <= 0 || longest <= maxSize {
		return src
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	resized := resize.Resize(uint(newW), uint(newH), src, resize.Lanczos3)
	return ToNRGBA(resized)
}

// TrimToSubject 按 alpha bounding box 裁掉四周的透明区域
func TrimToSubject(img image.Image, threshold float64) (*image.NRGBA, error) {
	src := ToNRGBA(img)
	bbox, err := alphaBBox(src, threshold)
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bbox.Min, draw.Src)
	return dst, nil
}

// alphaBBox 从 alpha 通道计算主体 bounding box
// 把 alpha > threshold * 255 的像素当作“主体”，返回的坐标在 img.Bounds() 内
func alphaBBox(img *image.NRGBA, threshold float64) (image.Rectangle, error) {
	b := img.Bounds()
	th := uint8(threshold * 255)

	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[img.PixOffset(x, y)+3] <= th {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if maxX < minX {
		return image.Rectangle{}, ErrNoSubject
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), nil
}
