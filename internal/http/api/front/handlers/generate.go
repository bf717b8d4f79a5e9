package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/blendlab/blendlab/internal/gemini"
	"github.com/blendlab/blendlab/internal/generate"
)

// GenerationService runs the generation flow for one request.
type GenerationService interface {
	Process(ctx context.Context, req generate.Request) (generate.Response, error)
}

// GenerateHandler handles the image generation endpoint.
type GenerateHandler struct {
	service GenerationService
}

// NewGenerateHandler constructs a GenerateHandler.
func NewGenerateHandler(service GenerationService) *GenerateHandler {
	return &GenerateHandler{service: service}
}

// Generate accepts multipart reference images and returns the blended result
// as an inline data URI. Gating, validation and compensation all live in the
// orchestrator; this handler only translates transport.
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	form, errForm := c.MultipartForm()
	if errForm != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	images, errRead := readImages(form.File["files"])
	if errRead != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return
	}

	req := generate.Request{
		UserID:       userID,
		Redo:         isTruthy(c.PostForm("redo")),
		GenerationID: strings.TrimSpace(c.PostForm("generation_id")),
		Images:       images,
	}

	resp, errProcess := h.service.Process(c.Request.Context(), req)
	if errProcess != nil {
		writeGenerateError(c, errProcess)
		return
	}

	body := gin.H{"image_url": resp.ImageDataURI}
	if resp.GenerationID != "" {
		body["generation_id"] = resp.GenerationID
	}
	c.JSON(http.StatusOK, body)
}

// readImages loads the uploaded parts into memory. Reads are capped one byte
// past the size ceiling so the orchestrator's validation sees oversized files
// without the handler buffering arbitrary input.
func readImages(files []*multipart.FileHeader) ([]gemini.InputImage, error) {
	images := make([]gemini.InputImage, 0, len(files))
	for _, header := range files {
		file, errOpen := header.Open()
		if errOpen != nil {
			return nil, errOpen
		}
		data, errRead := io.ReadAll(io.LimitReader(file, generate.MaxFileBytes+1))
		_ = file.Close()
		if errRead != nil {
			return nil, errRead
		}
		images = append(images, gemini.InputImage{
			Data:     data,
			MimeType: header.Header.Get("Content-Type"),
		})
	}
	return images, nil
}

// writeGenerateError maps the orchestrator's error taxonomy onto HTTP status
// codes.
func writeGenerateError(c *gin.Context, errProcess error) {
	var invalid *generate.InvalidInputError
	var rateLimited *generate.RateLimitedError
	var failed *generate.GenerationFailedError

	switch {
	case errors.As(errProcess, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Reason})
	case errors.Is(errProcess, generate.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
	case errors.Is(errProcess, generate.ErrRedoExhausted):
		c.JSON(http.StatusForbidden, gin.H{"error": "redo budget exhausted"})
	case errors.As(errProcess, &rateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"retry_after": int(rateLimited.ResetIn.Seconds()),
		})
	case errors.As(errProcess, &failed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": failed.Error()})
	default:
		log.WithError(errProcess).Error("generation request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// isTruthy interprets form flag values.
func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
