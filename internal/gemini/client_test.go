package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blendlab/blendlab/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL,
	})
}

func TestBlendImagesReturnsFirstImagePart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if errDecode := json.NewDecoder(r.Body).Decode(&req); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 3 {
			t.Errorf("unexpected request shape: %+v", req.Contents)
		}
		if req.Contents[0].Parts[0].Text == "" {
			t.Errorf("missing instruction part")
		}

		_ = json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content      content `json:"content"`
				FinishReason string  `json:"finishReason"`
			}{{
				Content: content{Parts: []part{
					{Text: "here you go"},
					{InlineData: &inlineData{MimeType: "image/png", Data: "aW1hZ2U="}},
				}},
			}},
		})
	})

	result, errBlend := client.BlendImages(context.Background(), []InputImage{
		{Data: []byte("a"), MimeType: "image/png"},
		{Data: []byte("b"), MimeType: "image/jpeg"},
	})
	if errBlend != nil {
		t.Fatalf("blend: %v", errBlend)
	}
	if result.MimeType != "image/png" || result.Data != "aW1hZ2U=" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestBlendImagesNoImageIsNoImageError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content      content `json:"content"`
				FinishReason string  `json:"finishReason"`
			}{{
				Content: content{Parts: []part{{Text: "cannot blend these"}}},
			}},
		})
	})

	_, errBlend := client.BlendImages(context.Background(), []InputImage{{Data: []byte("a"), MimeType: "image/png"}})
	var noImage *NoImageError
	if !errors.As(errBlend, &noImage) {
		t.Fatalf("expected NoImageError, got %v", errBlend)
	}
	if noImage.Text != "cannot blend these" {
		t.Fatalf("unexpected text: %q", noImage.Text)
	}
}

func TestBlendImagesNonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	})

	_, errBlend := client.BlendImages(context.Background(), []InputImage{{Data: []byte("a"), MimeType: "image/png"}})
	if errBlend == nil {
		t.Fatalf("expected error on 429 response")
	}
	var noImage *NoImageError
	if errors.As(errBlend, &noImage) {
		t.Fatalf("transport error must not be a NoImageError")
	}
}
