package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"nikkei-digest/bot"
	"nikkei-digest/config"
	"nikkei-digest/digest"
	"nikkei-digest/feed"
	"nikkei-digest/report"
	"nikkei-digest/scheduler"
	"nikkei-digest/scraper"
	"nikkei-digest/storage"
	"nikkei-digest/summarizer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	loadConfig := func() (*config.Config, error) {
		// A missing .env is normal outside local development.
		_ = godotenv.Load()

		path, optional := config.GetConfigPath()
		if configPath != "" {
			path, optional = configPath, false
		}
		cfg, err := config.Load(path, optional)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		setupLogging(cfg.LogLevel)
		slog.Info("config loaded", "path", path, "providers", cfg.Providers)
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, summarize and deliver today's digest once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg)
		},
	}

	root := &cobra.Command{
		Use:           "nikkei-digest",
		Short:         "Daily Nikkei news digest",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the digest every day at digest_time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}

	var (
		limit int
		runID string
	)
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return showHistory(cmd.Context(), cfg, cmd.OutOrStdout(), limit, runID)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	historyCmd.Flags().StringVar(&runID, "run", "", "show one run in full, including stage errors")

	root.AddCommand(runCmd, daemonCmd, historyCmd)
	return root
}

func setupLogging(level string) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// App holds the wired pipeline and the resources it owns.
type App struct {
	db     *storage.DB
	runner *digest.Runner
}

func newApp(cfg *config.Config) *App {
	var opts []digest.Option
	opts = append(opts, digest.WithLocation(cfg.Location()))

	// Run history is optional: a broken database must not stop the digest.
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Warn("run history disabled", "path", cfg.DBPath, "error", err)
		db = nil
	} else {
		opts = append(opts, digest.WithRecorder(db))
	}

	runner := digest.NewRunner(
		newFeedClient(cfg),
		summarizer.NewChain(buildStages(cfg)...),
		report.NewStore(cfg.SummariesDir),
		newNotifier(cfg),
		opts...,
	)
	return &App{db: db, runner: runner}
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func newFeedClient(cfg *config.Config) *feed.Client {
	opts := []feed.Option{
		feed.WithTimeout(cfg.FetchTimeout()),
		feed.WithMaxArticles(cfg.MaxArticles),
	}
	if cfg.EnrichEmptySummaries {
		opts = append(opts, feed.WithExcerpter(scraper.NewScraper(
			scraper.WithTimeout(cfg.FetchTimeout()),
		)))
	}
	return feed.NewClient(cfg.FeedURL, opts...)
}

// buildStages turns the providers list into remote chain stages. The keyword
// classifier is appended by the chain itself.
func buildStages(cfg *config.Config) []summarizer.Stage {
	timeout := cfg.GenerateTimeout()
	stages := make([]summarizer.Stage, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		var gen summarizer.Generator
		switch p {
		case config.ProviderGemini:
			gen = summarizer.NewGemini(cfg.GeminiAPIKey, summarizer.WithModel(cfg.GeminiModel))
		case config.ProviderAnthropic:
			gen = summarizer.NewAnthropic(cfg.AnthropicAPIKey, summarizer.WithModel(cfg.AnthropicModel))
		case config.ProviderOpenAI:
			gen = summarizer.NewOpenAI(cfg.OpenAIAPIKey, summarizer.WithModel(cfg.OpenAIModel))
		default:
			slog.Warn("unknown provider skipped", "provider", p)
			continue
		}
		stages = append(stages, summarizer.Remote(gen, timeout))
	}
	return stages
}

func newNotifier(cfg *config.Config) *bot.Broadcast {
	var channels []bot.Notifier
	if line := bot.NewLine(cfg.LineChannelToken, cfg.LineUserID); line != nil {
		channels = append(channels, line)
	}
	if tg := bot.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID); tg != nil {
		channels = append(channels, tg)
	}

	b := bot.NewBroadcast(channels...)
	if len(channels) == 0 {
		slog.Warn("no notification channel configured")
	} else {
		slog.Info("notification channels", "channels", b.Channels())
	}
	return b
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	app := newApp(cfg)
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err := app.runner.Run(ctx)
	return err
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	app := newApp(cfg)
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewDaily(cfg.Location())
	if err := sched.Schedule(cfg.DigestTime, func(ctx context.Context) error {
		_, err := app.runner.Run(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}
	slog.Info("digest scheduled", "time", cfg.DigestTime, "timezone", cfg.Timezone)

	sched.Run(ctx)
	return nil
}

func showHistory(ctx context.Context, cfg *config.Config, w io.Writer, limit int, runID string) error {
	if limit <= 0 {
		return errors.New("limit must be positive")
	}

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer db.Close()

	if runID != "" {
		run, err := db.GetRun(ctx, runID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		if err != nil {
			return err
		}
		return writeRun(w, run, cfg.Location())
	}

	runs, err := db.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	counts, err := db.StageCounts(ctx)
	if err != nil {
		return err
	}
	return writeHistory(w, runs, counts, cfg.Location())
}

func writeHistory(w io.Writer, runs []*storage.Run, counts map[string]int, loc *time.Location) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSTARTED\tSTATUS\tSTAGE\tARTICLES\tNOTIFIED\tDETAIL")
	for _, r := range runs {
		status, detail := "ok", r.DocumentPath
		if !r.Succeeded() {
			status, detail = "failed", r.Error
		} else if len(r.Failures) > 0 {
			names := make([]string, len(r.Failures))
			for i, f := range r.Failures {
				names[i] = f.Stage
			}
			detail += " (fell back past " + strings.Join(names, ", ") + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
			r.ID,
			r.RunDate,
			r.StartedAt.In(loc).Format("15:04:05"),
			status,
			r.Stage,
			r.ArticleCount,
			r.Notified,
			detail,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(counts) == 0 {
		return nil
	}
	stages := make([]string, 0, len(counts))
	for stage := range counts {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	parts := make([]string, len(stages))
	for i, stage := range stages {
		parts[i] = fmt.Sprintf("%s=%d", stage, counts[stage])
	}
	_, err := fmt.Fprintf(w, "\nsuccessful runs by stage: %s\n", strings.Join(parts, " "))
	return err
}

func writeRun(w io.Writer, r *storage.Run, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", r.ID)
	fmt.Fprintf(tw, "date:\t%s\n", r.RunDate)
	fmt.Fprintf(tw, "started:\t%s\n", r.StartedAt.In(loc).Format(time.DateTime))
	fmt.Fprintf(tw, "finished:\t%s\n", r.FinishedAt.In(loc).Format(time.DateTime))
	fmt.Fprintf(tw, "stage:\t%s\n", r.Stage)
	fmt.Fprintf(tw, "articles:\t%d\n", r.ArticleCount)
	fmt.Fprintf(tw, "document:\t%s\n", r.DocumentPath)
	fmt.Fprintf(tw, "notified:\t%t\n", r.Notified)
	if !r.Succeeded() {
		fmt.Fprintf(tw, "error:\t%s\n", r.Error)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(tw, "failed stage:\t%s: %s\n", f.Stage, f.Error)
	}
	return tw.Flush()
}
