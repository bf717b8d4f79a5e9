// Package gemini is a minimal REST client for the Gemini image-generation API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blendlab/blendlab/internal/config"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// blendPrompt is the fixed instruction sent along with the reference images.
const blendPrompt = "Create a blended image from these references. Only output the final blended image, no other text or commentary."

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client from config, applying defaults for the model
// and base URL.
func NewClient(cfg config.GeminiConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = config.DefaultGeminiModel
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// InputImage is one reference image for a blend request.
type InputImage struct {
	Data     []byte
	MimeType string
}

// Result is the generated image payload.
type Result struct {
	Data     string // Base64-encoded image bytes.
	MimeType string
}

// NoImageError indicates a well-formed response that carried no image part.
// Text holds whatever explanation the model returned instead.
type NoImageError struct {
	Text string
}

func (e *NoImageError) Error() string {
	if strings.TrimSpace(e.Text) == "" {
		return "gemini: response contained no image"
	}
	return "gemini: no image returned: " + e.Text
}

// Gemini API types.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// BlendImages sends the reference images with the fixed blend instruction and
// returns the first image part of the response. A response without an image
// part, even on HTTP 200, is reported as a NoImageError carrying the model's
// textual explanation.
func (c *Client) BlendImages(ctx context.Context, images []InputImage) (Result, error) {
	parts := make([]part, 0, len(images)+1)
	parts = append(parts, part{Text: blendPrompt})
	for _, img := range images {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: img.MimeType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	jsonBody, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return Result{}, fmt.Errorf("gemini: marshal request: %w", errMarshal)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if errReq != nil {
		return Result{}, fmt.Errorf("gemini: create request: %w", errReq)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		return Result{}, fmt.Errorf("gemini: request failed: %w", errDo)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return Result{}, fmt.Errorf("gemini: status %d: %s", httpResp.StatusCode, string(excerpt))
	}

	var resp generateResponse
	if errDecode := json.NewDecoder(httpResp.Body).Decode(&resp); errDecode != nil {
		return Result{}, fmt.Errorf("gemini: decode response: %w", errDecode)
	}

	var text strings.Builder
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return Result{
					Data:     p.InlineData.Data,
					MimeType: p.InlineData.MimeType,
				}, nil
			}
			if p.Text != "" {
				text.WriteString(p.Text)
			}
		}
	}

	return Result{}, &NoImageError{Text: text.String()}
}
