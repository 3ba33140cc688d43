package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nikkei-digest/bot"
	"nikkei-digest/feed"
	"nikkei-digest/report"
	"nikkei-digest/storage"
	"nikkei-digest/summarizer"
)

// ArticleSource fetches the day's articles.
type ArticleSource interface {
	Fetch(ctx context.Context) ([]feed.Article, error)
}

// Summarizer turns articles into a summary. It never fails.
type Summarizer interface {
	Summarize(ctx context.Context, articles []feed.Article) summarizer.Result
}

// DocumentStore persists the rendered document for a day.
type DocumentStore interface {
	Save(date time.Time, content string) (string, error)
}

// Notifier delivers a text message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// RunRecorder stores the outcome of a run.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *storage.Run) error
}

// Runner orchestrates the digest workflow.
type Runner struct {
	source     ArticleSource
	summarizer Summarizer
	documents  DocumentStore
	notifier   Notifier
	recorder   RunRecorder
	location   *time.Location
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLocation sets the timezone used for the run date.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		r.location = loc
	}
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithRecorder records every run, successful or not.
func WithRecorder(rec RunRecorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a new digest runner.
func NewRunner(
	source ArticleSource,
	summarizer Summarizer,
	documents DocumentStore,
	notifier Notifier,
	opts ...Option,
) *Runner {
	r := &Runner{
		source:     source,
		summarizer: summarizer,
		documents:  documents,
		notifier:   notifier,
		location:   time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes fetch, summarize, render and notify once. Any failure, panics
// included, is reported through the notifier before being returned. A failed
// notification never fails the run.
func (r *Runner) Run(ctx context.Context) (*storage.Run, error) {
	started := r.now().In(r.location)
	run := &storage.Run{
		RunDate:   started.Format("2006-01-02"),
		StartedAt: started,
	}

	slog.Info("starting digest run", "run_date", run.RunDate)

	err := r.execute(ctx, started, run)
	if err != nil {
		run.Error = err.Error()
		slog.Error("digest run failed", "error", err)
		r.notifyFailure(ctx, err)
	}

	run.FinishedAt = r.now().In(r.location)
	r.record(ctx, run)

	if err != nil {
		return run, err
	}
	slog.Info("digest run complete",
		"stage", run.Stage,
		"articles", run.ArticleCount,
		"path", run.DocumentPath,
		"notified", run.Notified,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)
	return run, nil
}

func (r *Runner) execute(ctx context.Context, date time.Time, run *storage.Run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pipeline panic: %v", p)
		}
	}()

	// Step 1: Fetch articles
	articles, err := r.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch articles: %w", err)
	}
	run.ArticleCount = len(articles)
	slog.Info("fetched articles", "count", len(articles))

	// Step 2: Summarize
	result := r.summarizer.Summarize(ctx, articles)
	run.Stage = result.Stage
	for _, f := range result.Failures {
		run.Failures = append(run.Failures, storage.Failure{Stage: f.Stage, Error: f.Err.Error()})
	}

	// Step 3: Render and persist the document
	doc := report.RenderDocument(result.Summary, articles, date)
	path, err := r.documents.Save(date, doc)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	run.DocumentPath = path
	slog.Info("document saved", "path", path)

	// Step 4: Notify
	msg := report.FormatNotification(result.Summary, articles, len(articles), date)
	if err := r.notify(ctx, msg); err != nil {
		logNotifyError("failed to send notification", err)
		return nil
	}
	run.Notified = true
	return nil
}

// notifyFailure still tries to send after ctx was cancelled, which is how a
// run interrupted by a signal fails.
func (r *Runner) notifyFailure(ctx context.Context, cause error) {
	if err := r.notify(context.WithoutCancel(ctx), report.FormatError(cause.Error())); err != nil {
		logNotifyError("failed to send error notification", err)
	}
}

func (r *Runner) notify(ctx context.Context, text string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", bot.ErrDeliveryFailed, p)
		}
	}()
	return r.notifier.Notify(ctx, text)
}

func (r *Runner) record(ctx context.Context, run *storage.Run) {
	if r.recorder == nil {
		return
	}
	// The run is recorded even when ctx was cancelled mid-run.
	if err := r.recorder.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("failed to record run", "error", err)
	}
}

func logNotifyError(msg string, err error) {
	if errors.Is(err, bot.ErrNotConfigured) {
		slog.Warn(msg+": no notification channel configured")
		return
	}
	slog.Error(msg, "error", err)
}
