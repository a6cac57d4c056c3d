package service

import (
	"context"
	"image"
)

// Remover 抠图模型：输入原始图片字节，输出背景透明的 RGBA 图像。
// 相同输入必须得到相同输出，调用方不得修改返回的图像。
type Remover interface {
	Remove(ctx context.Context, data []byte) (*image.NRGBA, error)
}

// RemoverFunc 允许普通函数充当 Remover
type RemoverFunc func(ctx context.Context, data []byte) (*image.NRGBA, error)

func (f RemoverFunc) Remove(ctx context.Context, data []byte) (*image.NRGBA, error) {
	return f(ctx, data)
}
