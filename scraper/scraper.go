package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

const defaultMaxRunes = 200

// Scraper pulls a short lead text out of an article page. It is used to
// fill feed entries that ship without a description.
type Scraper struct {
	httpClient *http.Client
	maxRunes   int
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.httpClient.Timeout = d
	}
}

// WithMaxRunes caps the returned excerpt length in characters.
func WithMaxRunes(n int) Option {
	return func(s *Scraper) {
		s.maxRunes = n
	}
}

// NewScraper creates a new excerpt scraper.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRunes:   defaultMaxRunes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Excerpt returns the page's readability excerpt, or the start of its text
// content when the page has none.
func (s *Scraper) Excerpt(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; nikkei-digest/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	text := strings.TrimSpace(article.Excerpt)
	if text == "" {
		text = strings.Join(strings.Fields(article.TextContent), " ")
	}

	if utf8.RuneCountInString(text) > s.maxRunes {
		text = string([]rune(text)[:s.maxRunes])
	}
	return text, nil
}
