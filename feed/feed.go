package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// ErrSourceUnavailable means the feed could not be fetched or yielded no
// entries at all.
var ErrSourceUnavailable = errors.New("feed source unavailable")

const (
	defaultMaxArticles = 30
	maxExcerptRunes    = 200
)

// Article is one feed entry. Optional fields are empty strings when absent.
type Article struct {
	Title     string
	Link      string
	Published string
	Summary   string
}

// Excerpter pulls lead text from an article page.
type Excerpter interface {
	Excerpt(ctx context.Context, url string) (string, error)
}

// Client fetches and normalizes a single RSS/RDF feed.
type Client struct {
	url         string
	httpClient  *http.Client
	maxArticles int
	excerpter   Excerpter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxArticles caps the number of returned articles.
func WithMaxArticles(n int) Option {
	return func(c *Client) {
		c.maxArticles = n
	}
}

// WithExcerpter fills empty summaries from the article page.
func WithExcerpter(e Excerpter) Option {
	return func(c *Client) {
		c.excerpter = e
	}
}

// NewClient creates a feed client for url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:         url,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxArticles: defaultMaxArticles,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the feed entries in feed order, truncated to the configured
// maximum. A feed that parses with errors but still yields entries is
// accepted.
func (c *Client) Fetch(ctx context.Context) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; nikkei-digest/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch feed: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status: %d", ErrSourceUnavailable, resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		if parsed == nil || len(parsed.Items) == 0 {
			return nil, fmt.Errorf("%w: parse feed: %w", ErrSourceUnavailable, err)
		}
		slog.Warn("feed parsed with errors", "url", c.url, "items", len(parsed.Items), "error", err)
	}

	items := parsed.Items
	if len(items) > c.maxArticles {
		items = items[:c.maxArticles]
	}

	articles := make([]Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, toArticle(item))
	}

	if c.excerpter != nil {
		c.enrich(ctx, articles)
	}

	slog.Info("fetched feed", "url", c.url, "count", len(articles))
	return articles, nil
}

func (c *Client) enrich(ctx context.Context, articles []Article) {
	for i := range articles {
		a := &articles[i]
		if a.Summary != "" || a.Link == "" {
			continue
		}
		text, err := c.excerpter.Excerpt(ctx, a.Link)
		if err != nil {
			slog.Warn("excerpt failed, leaving summary empty", "url", a.Link, "error", err)
			continue
		}
		a.Summary = truncateRunes(text, maxExcerptRunes)
	}
}

func toArticle(item *gofeed.Item) Article {
	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	return Article{
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(item.Link),
		Published: item.Published,
		Summary:   plainText(summary),
	}
}

// plainText reduces HTML markup to its text content.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
