package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"nikkei-digest/feed"
)

// Stage failures. All of them advance the chain to the next stage.
var (
	ErrBackendUnavailable = errors.New("backend credential not configured")
	ErrBackendError       = errors.New("backend call failed")
	ErrMalformedResponse  = errors.New("malformed model response")
)

// Stage is one attempt in the fallback chain. The set of stages is closed:
// remote generation stages and the keyword classifier.
type Stage interface {
	Name() string
	Summarize(ctx context.Context, articles []feed.Article) (*Summary, error)
	stage()
}

// Generator is a remote text generation backend.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Option configures a Generator.
type Option func(*options)

type options struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel sets the model to use.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient replaces the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func applyOptions(model, baseURL string, opts []Option) options {
	o := options{model: model, baseURL: baseURL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type remoteStage struct {
	gen     Generator
	timeout time.Duration
}

// Remote wraps a Generator as a chain stage. Its output goes through
// Normalize. A zero timeout means no per-call deadline.
func Remote(gen Generator, timeout time.Duration) Stage {
	return &remoteStage{gen: gen, timeout: timeout}
}

func (s *remoteStage) Name() string { return s.gen.Name() }

func (s *remoteStage) stage() {}

func (s *remoteStage) Summarize(ctx context.Context, articles []feed.Article) (*Summary, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.gen.Generate(ctx, BuildPrompt(articles))
	if err != nil {
		return nil, err
	}

	summary, err := Normalize(text)
	if err != nil {
		slog.Warn("unparseable model response", "stage", s.Name(), "head", head(text, 500))
		return nil, err
	}
	return summary, nil
}

// Attempt records a stage that did not produce a summary.
type Attempt struct {
	Stage string
	Err   error
}

// Result is the chain outcome: the summary, the stage that produced it and
// the stages that failed before it.
type Result struct {
	Summary  *Summary
	Stage    string
	Failures []Attempt
}

// Chain tries each stage in order and falls back to the keyword classifier.
type Chain struct {
	stages   []Stage
	fallback KeywordClassifier
}

// NewChain builds a chain over the given remote stages. The keyword
// classifier is always appended as the last resort.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Stages lists stage names in the order they are attempted.
func (c *Chain) Stages() []string {
	names := make([]string, 0, len(c.stages)+1)
	for _, s := range c.stages {
		names = append(names, s.Name())
	}
	return append(names, c.fallback.Name())
}

// Summarize always returns a summary; stage failures are logged and
// collected in Result.Failures.
func (c *Chain) Summarize(ctx context.Context, articles []feed.Article) Result {
	var failures []Attempt
	for _, s := range c.stages {
		slog.Info("summarizing", "stage", s.Name(), "articles", len(articles))
		summary, err := attempt(ctx, s, articles)
		if err == nil {
			slog.Info("summary produced", "stage", s.Name())
			return Result{Summary: summary, Stage: s.Name(), Failures: failures}
		}
		slog.Warn("stage failed, falling back", "stage", s.Name(), "error", err)
		failures = append(failures, Attempt{Stage: s.Name(), Err: err})
	}

	slog.Info("falling back to keyword classification", "articles", len(articles))
	return Result{
		Summary:  c.fallback.Classify(articles),
		Stage:    c.fallback.Name(),
		Failures: failures,
	}
}

func attempt(ctx context.Context, s Stage, articles []feed.Article) (summary *Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			summary, err = nil, fmt.Errorf("%w: panic: %v", ErrBackendError, r)
		}
	}()

	summary, err = s.Summarize(ctx, articles)
	if err == nil && summary == nil {
		err = fmt.Errorf("%w: empty result", ErrBackendError)
	}
	return summary, err
}

func head(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
