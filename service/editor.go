package service

import (
	"context"
	"fmt"
	"image"

	"github.com/TIANLI0/CutoutKit/model"
	"github.com/TIANLI0/CutoutKit/utils"
	"go.uber.org/zap"
)

// EditorService 会话控制器：持有会话状态，每次交互显式重算流水线
type EditorService struct {
	pipeline *Pipeline
	store    *SessionStore
}

func NewEditorService(pipeline *Pipeline, store *SessionStore) *EditorService {
	return &EditorService{pipeline: pipeline, store: store}
}

// Create 处理上传并开启新会话
func (e *EditorService) Create(ctx context.Context, data []byte) (*model.SessionInfo, error) {
	ws, err := e.pipeline.Prepare(ctx, data)
	if err != nil {
		return nil, err
	}

	s := e.store.Create(ws)
	s.mu.Lock()
	defer s.mu.Unlock()

	utils.Logger.Info("session created", zap.String("session_id", s.ID), zap.String("hash", ws.ContentHash))
	return s.Info(), nil
}

func (e *EditorService) Info(id string) (*model.SessionInfo, error) {
	var info *model.SessionInfo
	err := e.with(id, func(s *Session) error {
		info = s.Info()
		return nil
	})
	return info, err
}

func (e *EditorService) Delete(id string) error {
	return e.store.Delete(id)
}

// SetAdjustments 更新对比度与亮度
func (e *EditorService) SetAdjustments(id string, contrast, brightness float64) (*model.SessionInfo, error) {
	if !inRange(contrast) || !inRange(brightness) {
		return nil, newError(KindInvalidInput, "set adjustments",
			fmt.Errorf("factors must be within [%.1f, %.1f]", model.MinFactor, model.MaxFactor))
	}

	var info *model.SessionInfo
	err := e.with(id, func(s *Session) error {
		s.Edit.Contrast = contrast
		s.Edit.Brightness = brightness
		info = s.Info()
		return nil
	})
	return info, err
}

// SetBrush 更新笔刷模式与半径，radius 为 0 时保持不变
func (e *EditorService) SetBrush(id, mode string, radius int) (*model.SessionInfo, error) {
	m, err := model.ParseBrushMode(mode)
	if err != nil {
		return nil, newError(KindInvalidInput, "set brush", err)
	}

	var info *model.SessionInfo
	err = e.with(id, func(s *Session) error {
		s.Edit.BrushMode = m
		s.Edit.BrushRadius = model.ClampRadius(radius, s.Edit.BrushRadius)
		info = s.Info()
		return nil
	})
	return info, err
}

// ApplyStrokes 光栅化笔画后做一次修正
func (e *EditorService) ApplyStrokes(id string, req *model.StrokesRequest) (*model.SessionInfo, error) {
	return e.correct(id, req.Mode, func(s *Session) (*image.Alpha, error) {
		size := s.Workspace.DisplaySize()
		return RasterizeStrokes(size.X, size.Y, req.Strokes, s.Edit.BrushRadius), nil
	})
}

// ApplyMask 使用画布导出的掩码 PNG 做一次修正
func (e *EditorService) ApplyMask(id string, maskPNG []byte, mode string) (*model.SessionInfo, error) {
	return e.correct(id, mode, func(s *Session) (*image.Alpha, error) {
		return DecodeStrokeMask(maskPNG, s.Workspace.DisplaySize())
	})
}

// Reset 丢弃所有笔刷修正
func (e *EditorService) Reset(id string) (*model.SessionInfo, error) {
	var info *model.SessionInfo
	err := e.with(id, func(s *Session) error {
		s.Workspace = e.pipeline.Reset(s.Workspace)
		s.Corrections = 0
		info = s.Info()
		return nil
	})
	return info, err
}

// Original 显示分辨率原图
func (e *EditorService) Original(id string) ([]byte, error) {
	return e.encode(id, func(s *Session) image.Image { return s.Workspace.DisplayOrig })
}

// Canvas 画布背景：未调整的显示分辨率抠图
func (e *EditorService) Canvas(id string) ([]byte, error) {
	return e.encode(id, func(s *Session) image.Image { return s.Workspace.DisplayWorking })
}

// Preview 显示分辨率的最终效果
func (e *EditorService) Preview(id string) ([]byte, error) {
	return e.encode(id, func(s *Session) image.Image {
		return e.pipeline.Render(s.Workspace, s.Edit, ResolutionDisplay)
	})
}

// Download 高分辨率最终结果
func (e *EditorService) Download(id string) ([]byte, error) {
	return e.encode(id, func(s *Session) image.Image {
		return e.pipeline.Render(s.Workspace, s.Edit, ResolutionHigh)
	})
}

func (e *EditorService) correct(id, mode string, buildMask func(*Session) (*image.Alpha, error)) (*model.SessionInfo, error) {
	var info *model.SessionInfo
	err := e.with(id, func(s *Session) error {
		m := s.Edit.BrushMode
		if mode != "" {
			parsed, err := model.ParseBrushMode(mode)
			if err != nil {
				return newError(KindInvalidInput, "correct", err)
			}
			m = parsed
		}

		mask, err := buildMask(s)
		if err != nil {
			return err
		}
		if MaskEmpty(mask) {
			info = s.Info()
			return nil
		}

		ws, err := e.pipeline.Correct(s.Workspace, mask, m)
		if err != nil {
			return err
		}
		s.Workspace = ws
		s.Corrections++
		info = s.Info()

		utils.Logger.Debug("correction applied",
			zap.String("session_id", s.ID),
			zap.String("mode", string(m)),
			zap.Int("corrections", s.Corrections))
		return nil
	})
	return info, err
}

func (e *EditorService) encode(id string, pick func(*Session) image.Image) ([]byte, error) {
	var data []byte
	err := e.with(id, func(s *Session) error {
		var err error
		data, err = EncodePNG(pick(s))
		return err
	})
	return data, err
}

func (e *EditorService) with(id string, fn func(*Session) error) error {
	s, err := e.store.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

func inRange(f float64) bool {
	return f >= model.MinFactor && f <= model.MaxFactor
}
