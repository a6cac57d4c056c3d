package model

import "time"

// SessionInfo 会话概要
type SessionInfo struct {
	ID            string    `json:"id"`
	ContentHash   string    `json:"content_hash"`
	SourceWidth   int       `json:"source_width"`
	SourceHeight  int       `json:"source_height"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	DisplayWidth  int       `json:"display_width"`
	DisplayHeight int       `json:"display_height"`
	Corrections   int       `json:"corrections"`
	Edit          EditState `json:"edit"`
	CreatedAt     time.Time `json:"created_at"`
}

// AdjustmentsRequest 对比度/亮度调整
type AdjustmentsRequest struct {
	Contrast   float64 `json:"contrast" binding:"gte=0.5,lte=2"`
	Brightness float64 `json:"brightness" binding:"gte=0.5,lte=2"`
}

// BrushRequest 笔刷设置
type BrushRequest struct {
	Mode   string `json:"mode" binding:"required"`
	Radius int    `json:"radius" binding:"omitempty,gte=5,lte=50"`
}

// Point 显示分辨率下的画布坐标
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke 一笔手绘轨迹，Radius 为 0 时使用会话的笔刷半径
type Stroke struct {
	Radius int     `json:"radius" binding:"omitempty,gte=5,lte=50"`
	Points []Point `json:"points" binding:"required,min=1"`
}

// StrokesRequest 一次修正提交的笔画，Mode 为空时使用会话的笔刷模式
type StrokesRequest struct {
	Mode    string   `json:"mode"`
	Strokes []Stroke `json:"strokes" binding:"required,min=1,dive"`
}

// SessionResponse 会话响应
type SessionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *SessionInfo `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}
