package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krau/konaembed/pixel"
	"github.com/krau/konaembed/service"
	"github.com/krau/konaembed/similarity"
)

type Handler struct {
	embedder  *service.Embedder
	token     string
	maxUpload int64
}

type EmbedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

type SimilarityRequest struct {
	A []float64 `json:"a" binding:"required"`
	B []float64 `json:"b" binding:"required"`
}

type SimilarityResponse struct {
	Similarity float64 `json:"similarity"`
}

var (
	errMissingFile = errors.New("missing file")
	errTooLarge    = errors.New("upload too large")
)

func (h *Handler) authenticate(c *gin.Context) {
	if h.token == "" {
		return
	}
	auth := c.GetHeader("Authorization")
	providedToken := ""
	if len(auth) > 7 && auth[:7] == "Bearer " {
		providedToken = auth[7:]
	}
	if subtle.ConstantTimeCompare([]byte(providedToken), []byte(h.token)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "认证失败"})
	}
}

func (h *Handler) limitBody(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
}

func formImage(c *gin.Context, field string) (image.Image, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			return nil, fmt.Errorf("%w: %w", errTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %s", errMissingFile, field)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrDecode, err)
	}
	defer file.Close()

	img, err := pixel.Decode(file)
	if err != nil {
		if errors.Is(err, pixel.ErrTooLarge) {
			return nil, fmt.Errorf("%w: %w", errTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %w", service.ErrDecode, err)
	}
	return img, nil
}

func (h *Handler) abort(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "图片过大"})
	case errors.Is(err, errMissingFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "未上传文件"})
	case errors.Is(err, service.ErrDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法解析图片"})
	case errors.Is(err, service.ErrInitialization):
		slog.Error("Model initialization failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "模型加载失败"})
	default:
		slog.Error("Embedding failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "推理失败"})
	}
}

func (h *Handler) embedForm(c *gin.Context, field string) ([]float32, error) {
	img, err := formImage(c, field)
	if err != nil {
		return nil, err
	}
	return h.embedder.EmbedImage(c.Request.Context(), img)
}

func (h *Handler) EmbedHandler(c *gin.Context) {
	h.limitBody(c)
	vec, err := h.embedForm(c, "file")
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, EmbedResponse{Embedding: vec, Dimensions: len(vec)})
}

func (h *Handler) CompareHandler(c *gin.Context) {
	h.limitBody(c)
	a, err := h.embedForm(c, "a")
	if err != nil {
		h.abort(c, err)
		return
	}
	b, err := h.embedForm(c, "b")
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, SimilarityResponse{Similarity: similarity.CosineSimilarity(a, b)})
}

func (h *Handler) SimilarityHandler(c *gin.Context) {
	h.limitBody(c)
	var req SimilarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return
	}
	c.JSON(http.StatusOK, SimilarityResponse{Similarity: similarity.CosineSimilarity(req.A, req.B)})
}

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
