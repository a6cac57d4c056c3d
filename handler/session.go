package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/middleware"
	"github.com/TIANLI0/CutoutKit/model"
	"github.com/TIANLI0/CutoutKit/service"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const multipartSlack = 64 << 10

type SessionHandler struct {
	cfg    *config.Config
	editor *service.EditorService
}

func NewSessionHandler(cfg *config.Config, editor *service.EditorService) *SessionHandler {
	return &SessionHandler{
		cfg:    cfg,
		editor: editor,
	}
}

// Register 挂载会话相关路由
func (h *SessionHandler) Register(api *gin.RouterGroup) {
	api.POST("/sessions", h.Create)

	s := api.Group("/sessions/:id", h.requireID)
	{
		s.GET("", h.Get)
		s.DELETE("", h.Delete)
		s.PUT("/adjustments", h.SetAdjustments)
		s.PUT("/brush", h.SetBrush)
		s.POST("/strokes", h.ApplyStrokes)
		s.POST("/mask", h.ApplyMask)
		s.POST("/reset", h.Reset)
		s.GET("/original", h.Original)
		s.GET("/canvas", h.Canvas)
		s.GET("/preview", h.Preview)
		s.GET("/download", h.Download)
	}
}

// Create 上传图片，抠图并创建会话
func (h *SessionHandler) Create(c *gin.Context) {
	data, ok := h.readUpload(c, "image")
	if !ok {
		return
	}

	info, err := h.editor.Create(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err, "图片处理失败")
		return
	}

	c.JSON(http.StatusCreated, model.SessionResponse{
		Success: true,
		Message: "处理成功",
		Data:    info,
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	info, err := h.editor.Info(c.Param("id"))
	h.respond(c, info, err, "查询成功")
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.editor.Delete(c.Param("id")); err != nil {
		h.fail(c, err, "删除失败")
		return
	}
	c.JSON(http.StatusOK, model.SessionResponse{Success: true, Message: "会话已删除"})
}

// SetAdjustments 更新对比度/亮度
func (h *SessionHandler) SetAdjustments(c *gin.Context) {
	var req model.AdjustmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "对比度和亮度须在 0.5 到 2.0 之间", err)
		return
	}
	info, err := h.editor.SetAdjustments(c.Param("id"), req.Contrast, req.Brightness)
	h.respond(c, info, err, "调整已更新")
}

// SetBrush 切换笔刷模式/半径
func (h *SessionHandler) SetBrush(c *gin.Context) {
	var req model.BrushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "笔刷参数无效", err)
		return
	}
	info, err := h.editor.SetBrush(c.Param("id"), req.Mode, req.Radius)
	h.respond(c, info, err, "笔刷已更新")
}

// ApplyStrokes 提交手绘笔画
func (h *SessionHandler) ApplyStrokes(c *gin.Context) {
	var req model.StrokesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "笔画数据无效", err)
		return
	}
	info, err := h.editor.ApplyStrokes(c.Param("id"), &req)
	h.respond(c, info, err, "修正已应用")
}

// ApplyMask 提交画布导出的掩码 PNG
func (h *SessionHandler) ApplyMask(c *gin.Context) {
	data, ok := h.readUpload(c, "mask")
	if !ok {
		return
	}
	info, err := h.editor.ApplyMask(c.Param("id"), data, c.PostForm("mode"))
	h.respond(c, info, err, "修正已应用")
}

func (h *SessionHandler) Reset(c *gin.Context) {
	info, err := h.editor.Reset(c.Param("id"))
	h.respond(c, info, err, "修正已清除")
}

func (h *SessionHandler) Original(c *gin.Context) {
	h.png(c, h.editor.Original, "")
}

func (h *SessionHandler) Canvas(c *gin.Context) {
	h.png(c, h.editor.Canvas, "")
}

func (h *SessionHandler) Preview(c *gin.Context) {
	h.png(c, h.editor.Preview, "")
}

// Download 以附件形式返回高分辨率 PNG
func (h *SessionHandler) Download(c *gin.Context) {
	h.png(c, h.editor.Download, h.cfg.Pipeline.DownloadName)
}

func (h *SessionHandler) png(c *gin.Context, render func(id string) ([]byte, error), attachment string) {
	data, err := render(c.Param("id"))
	if err != nil {
		h.fail(c, err, "图片生成失败")
		return
	}
	if attachment != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment))
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

// readUpload 读取并校验上传文件
func (h *SessionHandler) readUpload(c *gin.Context, field string) ([]byte, bool) {
	// 请求体上限：文件上限加上表单开销
	limit := h.cfg.Upload.MaxSize + multipartSlack
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || c.Request.ContentLength > limit {
			h.tooLarge(c)
			return nil, false
		}
		utils.Logger.Warn("failed to get uploaded file", zap.String("field", field), zap.Error(err))
		h.badRequest(c, "请上传图片文件", err)
		return nil, false
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		h.tooLarge(c)
		return nil, false
	}

	// 验证文件类型
	if !h.isAllowedType(file) {
		c.JSON(http.StatusUnsupportedMediaType, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
			Code:    string(service.KindInvalidInput),
		})
		return nil, false
	}

	data, err := readFile(file)
	if err != nil {
		utils.Logger.Error("failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}

	utils.Logger.Info("file uploaded",
		zap.String("field", field),
		zap.String("filename", file.Filename),
		zap.Int64("size", file.Size),
		zap.String("request_id", middleware.GetRequestID(c)))

	return data, true
}

func (h *SessionHandler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{
		Success: false,
		Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		Code:    string(service.KindInvalidInput),
	})
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}

func (h *SessionHandler) isAllowedType(file *multipart.FileHeader) bool {
	contentType := file.Header.Get("Content-Type")
	// 部分客户端不带类型，交给解码器判断
	if contentType == "" || contentType == "application/octet-stream" {
		return true
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func (h *SessionHandler) requireID(c *gin.Context) {
	if !utils.ValidID(c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "会话不存在或已过期",
			Code:    "session_not_found",
		})
		return
	}
	c.Next()
}

func (h *SessionHandler) respond(c *gin.Context, info *model.SessionInfo, err error, message string) {
	if err != nil {
		h.fail(c, err, "操作失败")
		return
	}
	c.JSON(http.StatusOK, model.SessionResponse{
		Success: true,
		Message: message,
		Data:    info,
	})
}

func (h *SessionHandler) badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Message: message,
		Code:    string(service.KindInvalidInput),
		Error:   err.Error(),
	})
}

// fail 把流水线错误映射为状态码和可见的提示
func (h *SessionHandler) fail(c *gin.Context, err error, fallback string) {
	status, code, message := http.StatusInternalServerError, "internal", fallback

	if errors.Is(err, service.ErrSessionNotFound) {
		status, code, message = http.StatusNotFound, "session_not_found", "会话不存在或已过期"
	} else if kind, ok := service.KindOf(err); ok {
		code = string(kind)
		switch kind {
		case service.KindDecode:
			status, message = http.StatusBadRequest, "无法解析图片，请上传有效的 JPEG/PNG"
		case service.KindInvalidInput:
			status, message = http.StatusBadRequest, "请求参数无效"
		case service.KindModelInvocation:
			status, message = http.StatusBadGateway, "背景移除失败，请稍后重试"
		case service.KindDimensionMismatch:
			message = "内部错误：原图与抠图尺寸不一致"
		case service.KindEncode:
			message = "PNG 编码失败"
		}
	}

	logFn := utils.Logger.Warn
	if status >= 500 {
		logFn = utils.Logger.Error
	}
	logFn("request failed",
		zap.String("code", code),
		zap.String("session_id", c.Param("id")),
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err))

	_ = c.Error(err)
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
		Error:   err.Error(),
	})
}
