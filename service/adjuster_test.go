package service

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjust_Identity(t *testing.T) {
	img := cutoutOf(gradient(64, 48))

	got := Adjust(img, 1, 1)
	assert.Equal(t, img.Pix, got.Pix)
	assert.NotSame(t, img, got)
}

func TestAdjust_AlphaInvariant(t *testing.T) {
	img := cutoutOf(gradient(64, 48))
	for i := 3; i < len(img.Pix); i += 12 {
		img.Pix[i] = uint8(i)
	}

	for _, f := range [][2]float64{{0.5, 0.5}, {2, 2}, {0.5, 2}, {1.3, 0.7}, {1, 1.5}} {
		got := Adjust(img, f[0], f[1])
		for i := 3; i < len(img.Pix); i += 4 {
			if img.Pix[i] != got.Pix[i] {
				t.Fatalf("alpha changed at %d for %v: %d -> %d", i, f, img.Pix[i], got.Pix[i])
			}
		}
	}
}

func TestAdjust_BrightnessDoublesMidGray(t *testing.T) {
	img := solid(8, 8, color.NRGBA{R: 100, G: 128, B: 60, A: 200})

	got := Adjust(img, 1.0, 2.0)
	assert.Equal(t, color.NRGBA{R: 200, G: 255, B: 120, A: 200}, got.NRGBAAt(3, 3))
}

func TestAdjust_ContrastAroundMean(t *testing.T) {
	img := solid(2, 1, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	// 平均亮度 150

	got := Adjust(img, 2.0, 1.0)
	assert.Equal(t, color.NRGBA{R: 50, G: 50, B: 50, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 250, G: 250, B: 250, A: 255}, got.NRGBAAt(1, 0))

	got = Adjust(img, 0.5, 1.0)
	assert.Equal(t, color.NRGBA{R: 125, G: 125, B: 125, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 175, G: 175, B: 175, A: 255}, got.NRGBAAt(1, 0))
}

func TestAdjust_ContrastBeforeBrightness(t *testing.T) {
	img := solid(2, 1, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	// contrast 2 -> 50/250, brightness 0.5 -> 25/125
	got := Adjust(img, 2.0, 0.5)
	assert.Equal(t, uint8(25), got.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(125), got.NRGBAAt(1, 0).R)
}

func TestAdjust_Clamps(t *testing.T) {
	img := solid(2, 1, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	got := Adjust(img, 2.0, 2.0)
	assert.Equal(t, color.NRGBA{A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, got.NRGBAAt(1, 0))
}

func TestMeanLuma(t *testing.T) {
	assert.Equal(t, 128, meanLuma(solid(3, 3, color.NRGBA{R: 128, G: 128, B: 128})))
	assert.Equal(t, 76, meanLuma(solid(1, 1, color.NRGBA{R: 255, A: 255})))
}
