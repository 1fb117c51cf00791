package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/krau/konaembed/config"
	"github.com/krau/konaembed/pixel"
	"github.com/krau/konaembed/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meanModel struct{}

func (meanModel) Infer(_ context.Context, pix *pixel.Buffer, _ string) ([]float32, error) {
	out := make([]float32, pixel.Channels)
	for i, v := range pix.Pix {
		out[i%pixel.Channels] += float32(v)
	}
	return out, nil
}

func newTestRouter(t *testing.T, load service.Loader, token string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Token = token
	return NewRouter(service.New(load), cfg)
}

func okLoader(context.Context) (service.Model, error) { return meanModel{}, nil }

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, okLoader, "secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestEmbedHandler(t *testing.T) {
	r := newTestRouter(t, okLoader, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/embed", map[string][]byte{
		"file": pngBytes(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EmbedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Dimensions)
	n := float32(224 * 224)
	assert.InDeltaSlice(t, []float32{n, 2 * n, 3 * n}, resp.Embedding, 1)
}

func TestEmbedHandler_errors(t *testing.T) {
	r := newTestRouter(t, okLoader, "")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/embed", map[string][]byte{"other": []byte("x")}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/embed", map[string][]byte{"file": []byte("not an image")}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing := newTestRouter(t, func(context.Context) (service.Model, error) {
		return nil, errors.New("no weights")
	}, "")
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, multipartRequest(t, "/embed", map[string][]byte{
		"file": pngBytes(t, color.NRGBA{A: 255}),
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthentication(t *testing.T) {
	r := newTestRouter(t, okLoader, "secret")
	body := `{"a":[1,0],"b":[1,0]}`

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/similarity", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/similarity", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/similarity", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSimilarityHandler(t *testing.T) {
	r := newTestRouter(t, okLoader, "")

	req := httptest.NewRequest(http.MethodPost, "/similarity", strings.NewReader(`{"a":[1,0],"b":[0,1]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SimilarityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.0, resp.Similarity)

	req = httptest.NewRequest(http.MethodPost, "/similarity", strings.NewReader(`{"a":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareHandler(t *testing.T) {
	r := newTestRouter(t, okLoader, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/compare", map[string][]byte{
		"a": pngBytes(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}),
		"b": pngBytes(t, color.NRGBA{R: 20, G: 40, B: 60, A: 255}),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SimilarityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 1.0, resp.Similarity, 1e-6)
}

func TestEmbedHandler_uploadOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.MaxUploadMB = 1
	r := NewRouter(service.New(okLoader), cfg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/embed", map[string][]byte{
		"file": bytes.Repeat([]byte{0x42}, 2<<20),
	}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestEmbedHandler_dimensionsOverLimit(t *testing.T) {
	old := pixel.MaxPixels
	pixel.MaxPixels = 100
	t.Cleanup(func() { pixel.MaxPixels = old })

	r := newTestRouter(t, okLoader, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/embed", map[string][]byte{
		"file": pngBytes(t, color.NRGBA{A: 255}),
	}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}
