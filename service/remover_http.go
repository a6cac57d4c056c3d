package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/TIANLI0/CutoutKit/utils/httpclient"
	"go.uber.org/zap"
)

// HTTPRemover 调用 rembg 兼容的抠图服务：
//
//	curl -X POST "$ENDPOINT" -F "file=@my_image.png" -o cutout.png
type HTTPRemover struct {
	endpoint  string
	formField string
	timeout   time.Duration
	cli       httpclient.IClient
}

func NewHTTPRemover(cfg *config.RemoverConfig) *HTTPRemover {
	field := cfg.FormField
	if field == "" {
		field = "file"
	}
	return &HTTPRemover{
		endpoint:  cfg.Endpoint,
		formField: field,
		timeout:   cfg.Timeout,
		cli:       httpclient.NewHTTPClientWithTimeout(cfg.Timeout),
	}
}

func (h *HTTPRemover) Remove(ctx context.Context, data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, newError(KindDecode, "remove background", errEmptyInput)
	}
	// 上传前确认输入可以解码
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, newError(KindDecode, "remove background", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(h.formField, "image.png")
	if err != nil {
		return nil, newError(KindModelInvocation, "create form file", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, newError(KindModelInvocation, "write form file", err)
	}
	if err := writer.Close(); err != nil {
		return nil, newError(KindModelInvocation, "close form", err)
	}

	var resp []byte
	reqParam := &httpclient.RequestParam{
		RequestURI: h.endpoint,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &resp,
		Timeout:    h.timeout,
	}

	start := time.Now()
	if err := h.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, newError(KindModelInvocation, "call matting server", err)
	}

	utils.Logger.Debug("matting server responded",
		zap.String("endpoint", h.endpoint),
		zap.Int("bytes", len(resp)),
		zap.Duration("cost", time.Since(start)))

	cutout, err := DecodeImage(resp)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			err = de.Err
		}
		return nil, newError(KindModelInvocation, "decode matting response", err)
	}
	return cutout, nil
}
