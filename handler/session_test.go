package handler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/model"
	"github.com/TIANLI0/CutoutKit/service"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// halfRemover 右半边视为背景
func halfRemover(_ context.Context, data []byte) (*image.NRGBA, error) {
	img, err := service.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	w := img.Bounds().Dx()
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := w / 2; x < w; x++ {
			img.Pix[y*img.Stride+x*4+3] = 0
		}
	}
	return img, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func newTestRouter(t *testing.T, remover service.Remover) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Pipeline.HighResWidth = 200
	cfg.Pipeline.DisplayWidth = 100
	cfg.Upload.MaxSize = 1 << 20

	store := service.NewSessionStore(&cfg.Session)
	editor := service.NewEditorService(service.NewPipeline(&cfg.Pipeline, remover), store)

	r := gin.New()
	NewSessionHandler(cfg, editor).Register(r.Group("/api/v1"))
	return r
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func multipartRequest(t *testing.T, url, field, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="upload.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, url string, v interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) *model.SessionInfo {
	t.Helper()
	var resp model.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	return resp.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp
}

func createSession(t *testing.T, r *gin.Engine) *model.SessionInfo {
	t.Helper()
	w := serve(r, multipartRequest(t, "/api/v1/sessions", "image", "image/png", pngBytes(t, testImage(400, 200)), nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeSession(t, w)
}

func TestSessionHandler_Create(t *testing.T) {
	r := newTestRouter(t, service.RemoverFunc(halfRemover))
	info := createSession(t, r)

	assert.True(t, utils.ValidID(info.ID))
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 100, info.DisplayWidth)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+info.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, info.ID, decodeSession(t, w).ID)
}

func TestSessionHandler_CreateErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		r := newTestRouter(t, service.RemoverFunc(halfRemover))
		w := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("undecodable", func(t *testing.T) {
		r := newTestRouter(t, service.RemoverFunc(halfRemover))
		w := serve(r, multipartRequest(t, "/api/v1/sessions", "image", "image/png", []byte("not a png"), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(service.KindDecode), decodeError(t, w).Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		r := newTestRouter(t, service.RemoverFunc(halfRemover))
		w := serve(r, multipartRequest(t, "/api/v1/sessions", "image", "image/gif", []byte("GIF89a"), nil))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		r := newTestRouter(t, service.RemoverFunc(halfRemover))
		w := serve(r, multipartRequest(t, "/api/v1/sessions", "image", "image/png", make([]byte, 2<<20), nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("too large without content length", func(t *testing.T) {
		r := newTestRouter(t, service.RemoverFunc(halfRemover))
		req := multipartRequest(t, "/api/v1/sessions", "image", "image/png", make([]byte, 8<<20), nil)
		body := &countingReader{r: req.Body}
		req.Body = io.NopCloser(body)
		req.ContentLength = -1

		w := serve(r, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Less(t, body.n, int64(2<<20))
	})

	t.Run("model failure", func(t *testing.T) {
		failing := service.RemoverFunc(func(context.Context, []byte) (*image.NRGBA, error) {
			return nil, &service.Error{Kind: service.KindModelInvocation, Op: "call", Err: errors.New("unavailable")}
		})
		r := newTestRouter(t, failing)
		w := serve(r, multipartRequest(t, "/api/v1/sessions", "image", "image/png", pngBytes(t, testImage(40, 40)), nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, string(service.KindModelInvocation), decodeError(t, w).Code)
	})
}

func TestSessionHandler_NotFound(t *testing.T) {
	r := newTestRouter(t, service.RemoverFunc(halfRemover))

	for _, path := range []string{
		"/api/v1/sessions/not-a-ksuid",
		"/api/v1/sessions/" + utils.GenerateID(),
		"/api/v1/sessions/" + utils.GenerateID() + "/preview",
	} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "session_not_found", decodeError(t, w).Code)
	}
}

func TestSessionHandler_EditFlow(t *testing.T) {
	r := newTestRouter(t, service.RemoverFunc(halfRemover))
	info := createSession(t, r)
	base := "/api/v1/sessions/" + info.ID

	w := serve(r, jsonRequest(t, http.MethodPut, base+"/brush", model.BrushRequest{Mode: "restore", Radius: 10}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.BrushRestore, decodeSession(t, w).Edit.BrushMode)

	strokes := model.StrokesRequest{Strokes: []model.Stroke{{Points: []model.Point{{X: 60, Y: 20}, {X: 90, Y: 20}}}}}
	w = serve(r, jsonRequest(t, http.MethodPost, base+"/strokes", strokes))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decodeSession(t, w).Corrections)

	w = serve(r, jsonRequest(t, http.MethodPut, base+"/adjustments", model.AdjustmentsRequest{Contrast: 1.2, Brightness: 0.9}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1.2, decodeSession(t, w).Edit.Contrast)

	w = serve(r, httptest.NewRequest(http.MethodGet, base+"/preview", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	preview, err := service.DecodeImage(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(100, 50), preview.Bounds().Size())

	w = serve(r, httptest.NewRequest(http.MethodGet, base+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="edited_image_final.png"`, w.Header().Get("Content-Disposition"))
	final, err := service.DecodeImage(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 100), final.Bounds().Size())
	assert.EqualValues(t, 255, final.NRGBAAt(150, 40).A)
	assert.EqualValues(t, 0, final.NRGBAAt(150, 90).A)

	w = serve(r, httptest.NewRequest(http.MethodPost, base+"/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeSession(t, w).Corrections)

	w = serve(r, httptest.NewRequest(http.MethodDelete, base, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(r, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_InvalidEdits(t *testing.T) {
	r := newTestRouter(t, service.RemoverFunc(halfRemover))
	info := createSession(t, r)
	base := "/api/v1/sessions/" + info.ID

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"contrast too high", jsonRequest(t, http.MethodPut, base+"/adjustments", model.AdjustmentsRequest{Contrast: 3, Brightness: 1})},
		{"brightness too low", jsonRequest(t, http.MethodPut, base+"/adjustments", model.AdjustmentsRequest{Contrast: 1, Brightness: 0.1})},
		{"unknown brush", jsonRequest(t, http.MethodPut, base+"/brush", model.BrushRequest{Mode: "smudge"})},
		{"radius out of range", jsonRequest(t, http.MethodPut, base+"/brush", model.BrushRequest{Mode: "erase", Radius: 99})},
		{"no strokes", jsonRequest(t, http.MethodPost, base+"/strokes", model.StrokesRequest{})},
		{"empty stroke", jsonRequest(t, http.MethodPost, base+"/strokes", model.StrokesRequest{Strokes: []model.Stroke{{}}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestSessionHandler_Mask(t *testing.T) {
	r := newTestRouter(t, service.RemoverFunc(halfRemover))
	info := createSession(t, r)
	base := "/api/v1/sessions/" + info.ID

	mask := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 25; x++ {
			mask.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}

	w := serve(r, multipartRequest(t, base+"/mask", "mask", "image/png", pngBytes(t, mask), map[string]string{"mode": "erase"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decodeSession(t, w).Corrections)

	w = serve(r, httptest.NewRequest(http.MethodGet, base+"/canvas", nil))
	require.Equal(t, http.StatusOK, w.Code)
	canvas, err := service.DecodeImage(w.Body.Bytes())
	require.NoError(t, err)
	assert.EqualValues(t, 0, canvas.NRGBAAt(5, 10).A)
	assert.EqualValues(t, 255, canvas.NRGBAAt(40, 10).A)

	small := pngBytes(t, image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	w = serve(r, multipartRequest(t, base+"/mask", "mask", "image/png", small, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, base+"/original", nil))
	require.Equal(t, http.StatusOK, w.Code)
	original, err := service.DecodeImage(w.Body.Bytes())
	require.NoError(t, err)
	assert.EqualValues(t, 255, original.NRGBAAt(5, 10).A)
}
