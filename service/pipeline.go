package service

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/model"
	"github.com/TIANLI0/CutoutKit/utils"
	"go.uber.org/zap"
)

// Resolution 渲染目标分辨率
type Resolution int

const (
	ResolutionDisplay Resolution = iota
	ResolutionHigh
)

// Workspace 一次上传对应的全部中间图像。
// 除 Working 外均在 Prepare 后保持不变；Working 每次修正都替换为新图像。
type Workspace struct {
	ContentHash    string
	SourceSize     image.Point
	Original       *image.NRGBA // 高分辨率原图
	DisplayOrig    *image.NRGBA // 显示分辨率原图
	Cutout         *image.NRGBA // 模型输出（高分辨率）
	Working        *image.NRGBA // 叠加了修正的高分辨率抠图
	DisplayWorking *image.NRGBA // Working 的显示分辨率版本，作为画布背景
}

// DisplaySize 画布尺寸，笔刷掩码必须与之对齐
func (ws *Workspace) DisplaySize() image.Point {
	return ws.DisplayWorking.Bounds().Size()
}

// Pipeline 串起缩放、抠图、修正和调整，每次交互显式调用一次
type Pipeline struct {
	highResWidth int
	displayWidth int
	remover      Remover
}

func NewPipeline(cfg *config.PipelineConfig, remover Remover) *Pipeline {
	return &Pipeline{
		highResWidth: cfg.HighResWidth,
		displayWidth: cfg.DisplayWidth,
		remover:      remover,
	}
}

// Prepare 解码上传内容，生成两种分辨率的原图和抠图
func (p *Pipeline) Prepare(ctx context.Context, data []byte) (*Workspace, error) {
	startTime := time.Now()

	src, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	original := Resize(src, p.highResWidth)
	highResPNG, err := EncodePNG(original)
	if err != nil {
		return nil, err
	}

	cutout, err := p.remover.Remove(ctx, highResPNG)
	if err != nil {
		return nil, err
	}
	if cutout == nil || cutout.Bounds().Empty() {
		return nil, newError(KindModelInvocation, "remove background", errEmptyImage)
	}
	cutout = toNRGBA(cutout)
	if cutout.Bounds().Size() != original.Bounds().Size() {
		utils.Logger.Warn("cutout size differs from input, resizing",
			zap.Stringer("cutout", cutout.Bounds().Size()),
			zap.Stringer("original", original.Bounds().Size()))
		cutout = resizeExact(cutout, original.Bounds().Size())
	}

	ws := &Workspace{
		ContentHash: utils.ContentHash(data),
		SourceSize:  src.Bounds().Size(),
		Original:    original,
		DisplayOrig: Resize(original, p.displayWidth),
		Cutout:      cutout,
	}
	p.setWorking(ws, cutout)

	utils.Logger.Info("workspace prepared",
		zap.String("hash", ws.ContentHash),
		zap.Stringer("source", ws.SourceSize),
		zap.Stringer("high_res", original.Bounds().Size()),
		zap.Stringer("display", ws.DisplaySize()),
		zap.Duration("duration", time.Since(startTime)))

	return ws, nil
}

// Correct 把一次笔刷掩码合并进当前抠图，返回新的工作区（原工作区不变）
func (p *Pipeline) Correct(ws *Workspace, mask *image.Alpha, mode model.BrushMode) (*Workspace, error) {
	if mask != nil && !mask.Bounds().Empty() && mask.Bounds().Size() != ws.DisplaySize() {
		return nil, newError(KindInvalidInput, "correct",
			fmt.Errorf("mask is %v, canvas is %v", mask.Bounds().Size(), ws.DisplaySize()))
	}

	working, err := ApplyCorrection(ws.Original, ws.Working, mask, mode)
	if err != nil {
		return nil, err
	}

	next := *ws
	if working != ws.Working {
		p.setWorking(&next, working)
	}
	return &next, nil
}

// Reset 丢弃所有修正，回到模型输出
func (p *Pipeline) Reset(ws *Workspace) *Workspace {
	next := *ws
	p.setWorking(&next, ws.Cutout)
	return &next
}

// Render 对当前抠图应用对比度/亮度
func (p *Pipeline) Render(ws *Workspace, edit model.EditState, res Resolution) *image.NRGBA {
	src := ws.Working
	if res == ResolutionDisplay {
		src = ws.DisplayWorking
	}
	return Adjust(src, edit.Contrast, edit.Brightness)
}

// RenderPNG Render 之后编码为 PNG
func (p *Pipeline) RenderPNG(ws *Workspace, edit model.EditState, res Resolution) ([]byte, error) {
	return EncodePNG(p.Render(ws, edit, res))
}

func (p *Pipeline) setWorking(ws *Workspace, working *image.NRGBA) {
	ws.Working = working
	ws.DisplayWorking = Resize(working, p.displayWidth)
}
