package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Job is the work run once per day.
type Job func(ctx context.Context) error

// Daily runs one job at a fixed wall-clock time in a timezone. A run that is
// still going when the next one is due causes that next run to be skipped.
type Daily struct {
	cron     *cron.Cron
	location *time.Location

	mu      sync.Mutex
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewDaily creates a scheduler for the given timezone.
func NewDaily(loc *time.Location) *Daily {
	logger := cron.VerbosePrintfLogger(slogPrinter{})
	return &Daily{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		location: loc,
	}
}

// Schedule registers job to run every day at timeStr (HH:MM), replacing any
// job registered earlier.
func (d *Daily) Schedule(timeStr string, job Job) error {
	hour, minute, err := parseTime(timeStr)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entryID != 0 {
		d.cron.Remove(d.entryID)
		d.entryID = 0
	}

	entryID, err := d.cron.AddFunc(buildCronSpec(hour, minute), func() {
		ctx := d.jobContext()
		start := time.Now()
		slog.Info("scheduled run starting", "time", timeStr)
		if err := job(ctx); err != nil {
			slog.Error("scheduled run failed", "error", err, "duration", time.Since(start))
			return
		}
		slog.Info("scheduled run finished", "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	d.entryID = entryID
	return nil
}

// Next reports when the job runs next. It is zero until Run has started the
// scheduler.
func (d *Daily) Next() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entryID == 0 {
		return time.Time{}
	}
	return d.cron.Entry(d.entryID).Next
}

// Run starts the scheduler and blocks until ctx is done. A job in progress
// sees its context cancelled and Run waits for it to return.
func (d *Daily) Run(ctx context.Context) {
	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	d.cron.Start()
	slog.Info("scheduler started", "timezone", d.location.String(), "next", d.Next())

	<-ctx.Done()

	d.mu.Lock()
	d.cancel()
	d.mu.Unlock()

	<-d.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (d *Daily) jobContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

type slogPrinter struct{}

func (slogPrinter) Printf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "cron")
}

func parseTime(timeStr string) (int, int, error) {
	matches := timeRegex.FindStringSubmatch(timeStr)
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("invalid time format: %q (expected HH:MM)", timeStr)
	}

	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])

	return hour, minute, nil
}

func buildCronSpec(hour, minute int) string {
	// minute hour day month weekday
	return fmt.Sprintf("%d %d * * *", minute, hour)
}
