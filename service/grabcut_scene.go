package service

import (
	"image"

	"gocv.io/x/gocv"
)

type sceneLevel string

const (
	sceneSimple   sceneLevel = "simple"
	sceneMedium   sceneLevel = "medium"
	sceneComplex  sceneLevel = "complex"
	scenePortrait sceneLevel = "portrait"
)

// sceneProfile 由场景复杂度推导出的 GrabCut 参数
type sceneProfile struct {
	level       sceneLevel
	portrait    bool
	iterations  int
	kernelSize  int
	refineEdges bool
}

// sceneAnalyzer 根据边缘密度、颜色方差和肤色占比判断场景类型
type sceneAnalyzer struct {
	skinLower gocv.Scalar
	skinUpper gocv.Scalar
}

func newSceneAnalyzer() *sceneAnalyzer {
	return &sceneAnalyzer{
		skinLower: gocv.Scalar{Val1: 0, Val2: 133, Val3: 77, Val4: 0},
		skinUpper: gocv.Scalar{Val1: 255, Val2: 173, Val3: 127, Val4: 255},
	}
}

func (sa *sceneAnalyzer) analyze(img *gocv.Mat, baseIterations int) sceneProfile {
	edgeDensity := sa.edgeDensity(img)
	colorVariance := sa.colorVariance(img)
	portrait := sa.skinRatio(img) > 0.15

	p := sceneProfile{portrait: portrait, iterations: baseIterations, kernelSize: 3, refineEdges: true}
	switch {
	case portrait:
		p.level = scenePortrait
		p.iterations = baseIterations + 1
		p.kernelSize = 5
	case edgeDensity < 0.05 && colorVariance < 30:
		p.level = sceneSimple
		p.iterations = max(3, baseIterations-2)
		p.refineEdges = false
	case edgeDensity > 0.15 || colorVariance > 60:
		p.level = sceneComplex
		p.iterations = baseIterations + 2
		p.kernelSize = 5
	default:
		p.level = sceneMedium
	}
	return p
}

func (sa *sceneAnalyzer) edgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	return float64(gocv.CountNonZero(edges)) / float64(img.Rows()*img.Cols())
}

// colorVariance Lab 空间各通道标准差的均值
func (sa *sceneAnalyzer) colorVariance(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	if stddev.Rows() == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		total += stddev.GetDoubleAt(i, 0)
	}
	return total / float64(stddev.Rows())
}

// skinMask YCrCb 阈值得到的肤色区域
func (sa *sceneAnalyzer) skinMask(img *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	skin := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb, sa.skinLower, sa.skinUpper, &skin)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()
	gocv.MorphologyEx(skin, &skin, gocv.MorphClose, kernel)
	gocv.MorphologyEx(skin, &skin, gocv.MorphOpen, kernel)

	return skin
}

func (sa *sceneAnalyzer) skinRatio(img *gocv.Mat) float64 {
	skin := sa.skinMask(img)
	defer skin.Close()
	return float64(gocv.CountNonZero(skin)) / float64(img.Rows()*img.Cols())
}

// boostSkin 把膨胀后的肤色区域并入前景，避免人像边缘的皮肤被切掉
func (sa *sceneAnalyzer) boostSkin(fgMask, img *gocv.Mat) gocv.Mat {
	skin := sa.skinMask(img)
	defer skin.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 15, Y: 15})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(skin, &dilated, kernel)

	boosted := gocv.NewMat()
	gocv.BitwiseOr(*fgMask, dilated, &boosted)
	return boosted
}
