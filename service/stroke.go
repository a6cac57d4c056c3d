package service

import (
	"fmt"
	"image"
	"math"

	"github.com/TIANLI0/CutoutKit/model"
	"golang.org/x/image/vector"
)

// 用 4 段三次贝塞尔逼近圆时控制点的系数
const circleKappa = 0.5522847498

// RasterizeStrokes 把手绘笔画光栅化为显示分辨率下的掩码（alpha>0 即被涂抹）。
// 每个点盖一个圆，相邻点之间补一段与笔刷同宽的矩形，超出画布的部分被裁掉。
func RasterizeStrokes(width, height int, strokes []model.Stroke, defaultRadius int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	canvas := mask.Bounds()
	z := vector.NewRasterizer(0, 0)

	for _, s := range strokes {
		r := float64(model.ClampRadius(s.Radius, defaultRadius))
		for i, p := range s.Points {
			stampDisc(z, mask, canvas, p, r)
			if i > 0 {
				stampSegment(z, mask, canvas, s.Points[i-1], p, r)
			}
		}
	}
	return mask
}

func stampDisc(z *vector.Rasterizer, mask *image.Alpha, canvas image.Rectangle, p model.Point, r float64) {
	box := boundsOf(canvas, p.X-r, p.Y-r, p.X+r, p.Y+r)
	if box.Empty() {
		return
	}
	z.Reset(box.Dx(), box.Dy())

	cx, cy := float32(p.X-float64(box.Min.X)), float32(p.Y-float64(box.Min.Y))
	rr, k := float32(r), float32(r*circleKappa)
	z.MoveTo(cx+rr, cy)
	z.CubeTo(cx+rr, cy+k, cx+k, cy+rr, cx, cy+rr)
	z.CubeTo(cx-k, cy+rr, cx-rr, cy+k, cx-rr, cy)
	z.CubeTo(cx-rr, cy-k, cx-k, cy-rr, cx, cy-rr)
	z.CubeTo(cx+k, cy-rr, cx+rr, cy-k, cx+rr, cy)
	z.ClosePath()
	z.Draw(mask, box, image.Opaque, image.Point{})
}

func stampSegment(z *vector.Rasterizer, mask *image.Alpha, canvas image.Rectangle, a, b model.Point, r float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*r, dx/length*r

	xs := [4]float64{a.X + nx, b.X + nx, b.X - nx, a.X - nx}
	ys := [4]float64{a.Y + ny, b.Y + ny, b.Y - ny, a.Y - ny}
	box := boundsOf(canvas,
		min(xs[0], xs[1], xs[2], xs[3]), min(ys[0], ys[1], ys[2], ys[3]),
		max(xs[0], xs[1], xs[2], xs[3]), max(ys[0], ys[1], ys[2], ys[3]))
	if box.Empty() {
		return
	}
	z.Reset(box.Dx(), box.Dy())

	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	z.MoveTo(float32(xs[0]-ox), float32(ys[0]-oy))
	for i := 1; i < 4; i++ {
		z.LineTo(float32(xs[i]-ox), float32(ys[i]-oy))
	}
	z.ClosePath()
	z.Draw(mask, box, image.Opaque, image.Point{})
}

func boundsOf(canvas image.Rectangle, x0, y0, x1, y1 float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(x0)), int(math.Floor(y0)),
		int(math.Ceil(x1)), int(math.Ceil(y1)),
	).Intersect(canvas)
}

// DecodeStrokeMask 解码画布导出的掩码 PNG，尺寸必须与显示分辨率一致
func DecodeStrokeMask(data []byte, size image.Point) (*image.Alpha, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Size() != size {
		return nil, newError(KindInvalidInput, "decode stroke mask",
			fmt.Errorf("mask is %v, canvas is %v", img.Bounds().Size(), size))
	}

	mask := image.NewAlpha(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			mask.Pix[y*mask.Stride+x] = img.Pix[y*img.Stride+x*4+3]
		}
	}
	return mask, nil
}
