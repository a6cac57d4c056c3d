package service

import (
	"image"

	"github.com/disintegration/imaging"
)

// Resize 把图像缩放到目标宽度，等比计算高度（向下取整）。
// 宽度不超过目标时不放大，原样返回。
func Resize(img image.Image, targetWidth int) *image.NRGBA {
	src := toNRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if targetWidth <= 0 || w <= targetWidth {
		return src
	}

	newHeight := max(1, h*targetWidth/w)
	return imaging.Resize(src, targetWidth, newHeight, imaging.Lanczos)
}

// resizeExact 缩放到精确尺寸，用于模型返回尺寸与输入不一致的情况
func resizeExact(img *image.NRGBA, size image.Point) *image.NRGBA {
	if img.Bounds().Size() == size {
		return img
	}
	return imaging.Resize(img, size.X, size.Y, imaging.Lanczos)
}
