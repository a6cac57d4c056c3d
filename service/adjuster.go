package service

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Adjust 先调对比度再调亮度，只作用于 RGB，alpha 原样保留。
//
// 对比度以整图平均亮度为中点做线性拉伸：c' = mid + f*(c-mid)；
// 亮度按倍数缩放：c' = c*f。每一步截断并钳制到 [0,255]。
// 两个系数都为 1 时输出与输入逐字节相同。
func Adjust(img *image.NRGBA, contrast, brightness float64) *image.NRGBA {
	if contrast == 1 && brightness == 1 {
		return imaging.Clone(img)
	}

	mid := float64(meanLuma(img))

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		if contrast != 1 {
			r = float64(clamp8(mid + contrast*(r-mid)))
			g = float64(clamp8(mid + contrast*(g-mid)))
			b = float64(clamp8(mid + contrast*(b-mid)))
		}
		if brightness != 1 {
			r = float64(clamp8(r * brightness))
			g = float64(clamp8(g * brightness))
			b = float64(clamp8(b * brightness))
		}
		return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: c.A}
	})
}

// meanLuma 整图 ITU-R 601 亮度均值（四舍五入），透明像素同样计入
func meanLuma(img *image.NRGBA) int {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var sum uint64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			l := (uint32(row[i])*19595 + uint32(row[i+1])*38470 + uint32(row[i+2])*7471 + 0x8000) >> 16
			sum += uint64(l)
		}
	}
	return int(float64(sum)/float64(n) + 0.5)
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
