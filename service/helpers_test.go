package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// gradient 每个像素颜色不同，便于检查逐像素对应关系
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func rectMask(w, h int, r image.Rectangle) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetAlpha(x, y, color.Alpha{A: 255})
		}
	}
	return m
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// fakeRemover 把左半边视为前景，右半边 alpha 置 0 并把颜色涂成洋红，
// 模拟抠图结果中背景颜色不可用的情况
type fakeRemover struct {
	calls atomic.Int64
	err   error
}

var garbage = color.NRGBA{R: 255, G: 0, B: 255, A: 0}

func (f *fakeRemover) Remove(_ context.Context, data []byte) (*image.NRGBA, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	w := img.Bounds().Dx()
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := w / 2; x < w; x++ {
			out.SetNRGBA(x, y, garbage)
		}
	}
	return out, nil
}
