package service

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResize_NoUpscale(t *testing.T) {
	img := gradient(100, 80)

	for _, target := range []int{100, 150, 0} {
		got := Resize(img, target)
		assert.Equal(t, img.Bounds(), got.Bounds())
		assert.Equal(t, img.Pix, got.Pix, "target %d", target)
	}
}

func TestResize_Downscale(t *testing.T) {
	tests := []struct {
		w, h, target int
		wantH        int
	}{
		{2000, 1500, 1200, 900},
		{1200, 900, 600, 450},
		{1001, 333, 500, 166},
		{640, 1, 320, 1},
		{3000, 2, 1000, 1},
	}

	for _, tt := range tests {
		got := Resize(solid(tt.w, tt.h, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), tt.target)
		assert.Equal(t, tt.target, got.Bounds().Dx())
		assert.Equal(t, tt.wantH, got.Bounds().Dy(), "%dx%d -> %d", tt.w, tt.h, tt.target)
		assert.Equal(t, image.Point{}, got.Bounds().Min)
	}
}

func TestResize_Deterministic(t *testing.T) {
	img := gradient(300, 200)
	assert.Equal(t, Resize(img, 120).Pix, Resize(img, 120).Pix)
}

func TestResize_ConvertsOtherModels(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.Set(1, 1, color.RGBA{R: 200, A: 255})

	got := Resize(rgba, 10)
	assert.Equal(t, color.NRGBA{R: 200, A: 255}, got.NRGBAAt(1, 1))
}
