package bot

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

const defaultLineEndpoint = "https://api.line.me/v2/bot/message/push"

// Line pushes text messages through the LINE Messaging API.
type Line struct {
	token      string
	to         string
	endpoint   string
	httpClient *http.Client
}

// LineOption configures a Line notifier.
type LineOption func(*Line)

// WithLineEndpoint sets a custom push endpoint (for testing).
func WithLineEndpoint(url string) LineOption {
	return func(l *Line) {
		l.endpoint = url
	}
}

// NewLine returns a LINE notifier, or nil when either credential is empty.
func NewLine(channelToken, userID string, opts ...LineOption) *Line {
	if channelToken == "" || userID == "" {
		return nil
	}
	l := &Line{
		token:      channelToken,
		to:         userID,
		endpoint:   defaultLineEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Line) Name() string { return "line" }

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePush struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

// Notify pushes text to the configured user. Anything but 200 is a
// delivery failure.
func (l *Line) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(linePush{
		To:       l.to,
		Messages: []lineMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %w", ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
