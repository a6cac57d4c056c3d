package service

import (
	"fmt"
	"image"

	"github.com/TIANLI0/CutoutKit/model"
	"github.com/disintegration/imaging"
)

// ApplyCorrection 把显示分辨率下的笔刷掩码合并进高分辨率抠图。
//
// 掩码以最近邻放大到抠图尺寸，保持二值。被涂抹的像素：
// Erase 只清零 alpha；Restore 从原图取回完整 RGBA。其余像素与 cutout 逐字节一致。
// 掩码为空时直接返回 cutout。
func ApplyCorrection(original, cutout *image.NRGBA, mask *image.Alpha, mode model.BrushMode) (*image.NRGBA, error) {
	if !mode.Valid() {
		return nil, newError(KindInvalidInput, "apply correction", fmt.Errorf("unknown brush mode %q", mode))
	}
	if MaskEmpty(mask) {
		return cutout, nil
	}

	size := cutout.Bounds().Size()
	if original.Bounds().Size() != size {
		return nil, newError(KindDimensionMismatch, "apply correction",
			fmt.Errorf("original %v, cutout %v", original.Bounds().Size(), size))
	}

	touched := upscaleMask(mask, size)

	out := imaging.Clone(cutout)
	w, h := size.X, size.Y
	for y := 0; y < h; y++ {
		mrow := touched.Pix[y*touched.Stride : y*touched.Stride+w]
		orow := y * out.Stride
		srow := y * original.Stride
		for x := 0; x < w; x++ {
			if mrow[x] == 0 {
				continue
			}
			i := orow + x*4
			switch mode {
			case model.BrushErase:
				out.Pix[i+3] = 0
			case model.BrushRestore:
				j := srow + x*4
				copy(out.Pix[i:i+4], original.Pix[j:j+4])
			}
		}
	}

	return out, nil
}

// MaskEmpty 报告掩码是否没有任何被涂抹的像素
func MaskEmpty(mask *image.Alpha) bool {
	if mask == nil || mask.Bounds().Empty() {
		return true
	}
	b := mask.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+b.Dx()]
		for _, a := range row {
			if a != 0 {
				return false
			}
		}
	}
	return true
}

// upscaleMask 以最近邻缩放掩码到目标尺寸，输出每像素 0 或 255
func upscaleMask(mask *image.Alpha, size image.Point) *image.Alpha {
	b := mask.Bounds()
	sw, sh := b.Dx(), b.Dy()

	// 二值化后交给 imaging 做最近邻缩放，结果仍只有 0/255
	binary := image.NewNRGBA(image.Rect(0, 0, sw, sh))
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			if mask.Pix[y*mask.Stride+x] != 0 {
				binary.Pix[y*binary.Stride+x*4+3] = 0xff
			}
		}
	}

	scaled := binary
	if sw != size.X || sh != size.Y {
		scaled = imaging.Resize(binary, size.X, size.Y, imaging.NearestNeighbor)
	}

	out := image.NewAlpha(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if scaled.Pix[y*scaled.Stride+x*4+3] != 0 {
				out.Pix[y*out.Stride+x] = 0xff
			}
		}
	}
	return out
}
