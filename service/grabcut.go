package service

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// GrabCutRemover 本地抠图后端：不依赖模型服务，用 OpenCV GrabCut 估计前景，
// 再把前景掩码写入 alpha 通道。
type GrabCutRemover struct {
	iterations        int
	borderSize        int
	maxSize           int
	maxForegroundOnly bool
	semaphore         chan struct{}
	queueTimeout      time.Duration
	scene             *sceneAnalyzer
}

func NewGrabCutRemover(cfg *config.GrabCutConfig) *GrabCutRemover {
	return &GrabCutRemover{
		iterations:        cfg.Iterations,
		borderSize:        cfg.BorderSize,
		maxSize:           cfg.MaxSize,
		maxForegroundOnly: cfg.MaxForegroundOnly,
		semaphore:         make(chan struct{}, max(1, cfg.MaxConcurrent)),
		queueTimeout:      time.Duration(cfg.QueueTimeout) * time.Second,
		scene:             newSceneAnalyzer(),
	}
}

func (s *GrabCutRemover) Remove(ctx context.Context, data []byte) (*image.NRGBA, error) {
	src, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	// 并发控制
	waitCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-waitCtx.Done():
		return nil, newError(KindModelInvocation, "grabcut queue", fmt.Errorf("处理队列已满，请稍后重试: %w", waitCtx.Err()))
	}

	startTime := time.Now()
	width, height := src.Bounds().Dx(), src.Bounds().Dy()

	img, err := gocv.ImageToMatRGB(Resize(src, s.workingWidth(width, height)))
	if err != nil {
		return nil, newError(KindModelInvocation, "convert image", err)
	}
	defer img.Close()

	fgMask, profile, err := s.segment(&img)
	if err != nil {
		return nil, err
	}
	defer fgMask.Close()

	// 还原到原始尺寸
	if fgMask.Cols() != width || fgMask.Rows() != height {
		resized := gocv.NewMat()
		gocv.Resize(fgMask, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
		gocv.Threshold(resized, &resized, 127, 255, gocv.ThresholdBinary)
		fgMask.Close()
		fgMask = resized
	}

	if s.maxForegroundOnly {
		largest := keepLargestRegion(&fgMask)
		fgMask.Close()
		fgMask = largest
	}

	alpha := fgMask.ToBytes()
	if len(alpha) != width*height {
		return nil, newError(KindModelInvocation, "grabcut mask",
			fmt.Errorf("mask has %d bytes, want %d", len(alpha), width*height))
	}

	out := imaging.Clone(src)
	for y := 0; y < height; y++ {
		row := y * out.Stride
		for x := 0; x < width; x++ {
			out.Pix[row+x*4+3] = alpha[y*width+x]
		}
	}

	utils.Logger.Info("grabcut cutout generated",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.String("scene", string(profile.level)),
		zap.Duration("duration", time.Since(startTime)))

	return out, nil
}

// segment 在缩小后的工作图上运行 GrabCut，返回 0/255 前景掩码
func (s *GrabCutRemover) segment(img *gocv.Mat) (gocv.Mat, sceneProfile, error) {
	w, h := img.Cols(), img.Rows()
	profile := s.scene.analyze(img, s.iterations)

	var initRect image.Rectangle
	var mask gocv.Mat

	if profile.level == sceneSimple {
		border := s.borderSize
		if border < 10 {
			border = int(float64(w) * 0.05)
		}
		initRect = image.Rect(border, border, w-border, h-border)
		mask = gocv.NewMat()
	} else {
		saliency := detectSaliency(img)
		defer saliency.Close()
		mask = seedMask(&saliency, w, h)
	}
	defer mask.Close()

	if initRect.Empty() && mask.Empty() {
		return gocv.Mat{}, profile, newError(KindModelInvocation, "grabcut", fmt.Errorf("image too small: %dx%d", w, h))
	}

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	if mask.Empty() {
		gocv.GrabCut(*img, &mask, initRect, &bgdModel, &fgdModel, profile.iterations, gocv.GCInitWithRect)
	} else {
		gocv.GrabCut(*img, &mask, image.Rectangle{}, &bgdModel, &fgdModel, profile.iterations, gocv.GCInitWithMask)
		gocv.GrabCut(*img, &mask, image.Rectangle{}, &bgdModel, &fgdModel, 2, gocv.GCInitWithMask)
	}

	fgMask := foregroundMask(&mask)

	if profile.portrait {
		boosted := s.scene.boostSkin(&fgMask, img)
		fgMask.Close()
		fgMask = boosted
	}

	cleaned := morphologyClean(&fgMask, profile.kernelSize)
	fgMask.Close()
	fgMask = cleaned

	if profile.refineEdges {
		refined := refineEdges(&fgMask)
		fgMask.Close()
		fgMask = refined
	}

	return fgMask, profile, nil
}

// workingWidth 让最长边不超过 maxSize
func (s *GrabCutRemover) workingWidth(width, height int) int {
	longest := max(width, height)
	if s.maxSize <= 0 || longest <= s.maxSize {
		return width
	}
	return max(1, width*s.maxSize/longest)
}
