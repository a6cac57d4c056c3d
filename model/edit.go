package model

import (
	"fmt"
	"strings"
)

// BrushMode 笔刷模式
type BrushMode string

const (
	BrushErase   BrushMode = "erase"
	BrushRestore BrushMode = "restore"
)

// 编辑参数取值范围
const (
	MinFactor      = 0.5
	MaxFactor      = 2.0
	MinBrushRadius = 5
	MaxBrushRadius = 50

	DefaultBrushRadius = 20
)

func (m BrushMode) Valid() bool {
	return m == BrushErase || m == BrushRestore
}

// ParseBrushMode 解析笔刷模式，大小写不敏感
func ParseBrushMode(s string) (BrushMode, error) {
	m := BrushMode(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m, nil
	}
	return "", fmt.Errorf("unknown brush mode %q", s)
}

// EditState 一次编辑的参数，由会话持有，流水线只读
type EditState struct {
	Contrast    float64   `json:"contrast"`
	Brightness  float64   `json:"brightness"`
	BrushMode   BrushMode `json:"brush_mode"`
	BrushRadius int       `json:"brush_radius"`
}

func DefaultEditState() EditState {
	return EditState{
		Contrast:    1.0,
		Brightness:  1.0,
		BrushMode:   BrushErase,
		BrushRadius: DefaultBrushRadius,
	}
}

// ClampRadius 把笔刷半径限制在允许范围内，0 表示使用 fallback
func ClampRadius(r, fallback int) int {
	if r == 0 {
		r = fallback
	}
	return min(max(r, MinBrushRadius), MaxBrushRadius)
}
