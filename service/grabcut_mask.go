package service

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// GrabCut 掩码取值
const (
	gcBackground    = 0
	gcForeground    = 1
	gcProbableBG    = 2
	gcProbableFG    = 3
	seedBorderRatio = 0.03
)

// detectSaliency 梯度幅值模糊后做 Otsu 二值化，作为粗略的显著性图
func detectSaliency(img *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	gradX := gocv.NewMat()
	defer gradX.Close()
	gradY := gocv.NewMat()
	defer gradY.Close()
	gocv.Sobel(gray, &gradX, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absX := gocv.NewMat()
	defer absX.Close()
	absY := gocv.NewMat()
	defer absY.Close()
	gocv.ConvertScaleAbs(gradX, &absX, 1, 0)
	gocv.ConvertScaleAbs(gradY, &absY, 1, 0)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.AddWeighted(absX, 0.5, absY, 0.5, 0, &gradient)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gradient, &blurred, image.Point{X: 21, Y: 21}, 0, 0, gocv.BorderDefault)

	saliency := gocv.NewMat()
	gocv.Threshold(blurred, &saliency, 0, 255, gocv.ThresholdOtsu)
	return saliency
}

// seedMask 生成 GrabCut 初始掩码：边框为确定背景，显著区域为可能前景，其余为可能背景
func seedMask(saliency *gocv.Mat, width, height int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 11, Y: 11})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)
	salient := dilated.ToBytes()

	mask := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
	border := int(float64(width) * seedBorderRatio)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(gcProbableBG)
			switch {
			case x < border || x >= width-border || y < border || y >= height-border:
				v = gcBackground
			case len(salient) == width*height && salient[y*width+x] > 128:
				v = gcProbableFG
			}
			mask.SetUCharAt(y, x, v)
		}
	}
	return mask
}

// foregroundMask 确定前景与可能前景合并为 255
func foregroundMask(mask *gocv.Mat) gocv.Mat {
	fg := gocv.NewMat()
	defer fg.Close()
	fgVal := gocv.NewMatFromScalar(gocv.Scalar{Val1: gcForeground}, gocv.MatTypeCV8U)
	defer fgVal.Close()
	gocv.Compare(*mask, fgVal, &fg, gocv.CompareEQ)

	probable := gocv.NewMat()
	defer probable.Close()
	prVal := gocv.NewMatFromScalar(gocv.Scalar{Val1: gcProbableFG}, gocv.MatTypeCV8U)
	defer prVal.Close()
	gocv.Compare(*mask, prVal, &probable, gocv.CompareEQ)

	combined := gocv.NewMat()
	gocv.BitwiseOr(fg, probable, &combined)
	return combined
}

// morphologyClean 开运算去噪点，闭运算补小洞
func morphologyClean(mask *gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(*mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	return closed
}

// refineEdges 轻微膨胀后模糊再二值化，平滑锯齿边缘
func refineEdges(mask *gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 2, Y: 2})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*mask, &dilated, kernel)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(dilated, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)

	final := gocv.NewMat()
	gocv.Threshold(blurred, &final, 127, 255, gocv.ThresholdBinary)
	return final
}

// keepLargestRegion 只保留面积最大的连通区域；没有轮廓时返回副本
func keepLargestRegion(mask *gocv.Mat) gocv.Mat {
	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return mask.Clone()
	}

	maxArea, maxIndex := 0.0, 0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > maxArea {
			maxArea, maxIndex = area, i
		}
	}

	largest := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8U)
	largest.SetTo(gocv.NewScalar(0, 0, 0, 0))
	gocv.DrawContours(&largest, contours, maxIndex, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return largest
}
