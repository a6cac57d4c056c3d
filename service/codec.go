package service

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// DecodeImage 解码上传的 JPEG/PNG，按 EXIF 方向摆正，统一为 NRGBA
func DecodeImage(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, newError(KindDecode, "decode image", errEmptyInput)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, newError(KindDecode, "decode image", err)
	}
	return toNRGBA(img), nil
}

// EncodePNG 无损编码，保留 alpha 通道
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, newError(KindEncode, "encode png", errEmptyImage)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return nil, newError(KindEncode, "encode png", err)
	}
	return buf.Bytes(), nil
}

// toNRGBA 转为以 (0,0) 为原点的 NRGBA；已是 NRGBA 且原点为零时原样返回
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
