package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiModel   = "gemini-1.5-flash-8b"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// Gemini generates text with the Gemini generateContent REST API.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGemini creates a Gemini backend. An empty apiKey yields a backend that
// reports ErrBackendUnavailable on every call.
func NewGemini(apiKey string, opts ...Option) *Gemini {
	o := applyOptions(defaultGeminiModel, defaultGeminiBaseURL, opts)
	g := &Gemini{
		apiKey:     apiKey,
		model:      o.model,
		baseURL:    strings.TrimRight(o.baseURL, "/"),
		httpClient: o.httpClient,
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return g
}

func (g *Gemini) Name() string { return "gemini" }

// Generate sends prompt as a single user turn and returns the text of the
// first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: GOOGLE_API_KEY", ErrBackendUnavailable)
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{{Text: prompt}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", ErrBackendError, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrBackendError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %w", ErrBackendError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: unexpected status %d: %s", ErrBackendError, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrBackendError, err)
	}

	return geminiResp.text()
}

// Gemini API types

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

func (r *geminiResponse) text() (string, error) {
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrBackendError)
	}

	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no parts in candidate", ErrBackendError)
	}

	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
