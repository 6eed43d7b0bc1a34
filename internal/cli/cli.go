package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/weekly-events/internal/canonical"
	"github.com/pfrederiksen/weekly-events/internal/classify"
	"github.com/pfrederiksen/weekly-events/internal/config"
	"github.com/pfrederiksen/weekly-events/internal/dedup"
	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/filter"
	"github.com/pfrederiksen/weekly-events/internal/httpapi"
	"github.com/pfrederiksen/weekly-events/internal/logger"
	"github.com/pfrederiksen/weekly-events/internal/metrics"
	"github.com/pfrederiksen/weekly-events/internal/normalize"
	"github.com/pfrederiksen/weekly-events/internal/pipeline"
	"github.com/pfrederiksen/weekly-events/internal/scraper"
	"github.com/pfrederiksen/weekly-events/internal/storage"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

var (
	flagConfig  string
	flagEnvFile string
	flagDataDir string
	flagFormat  string
	flagVerbose bool
	flagWeek    string
	flagSort    string
	flagMax     int

	// Filter flags for "week"
	flagDates       string
	flagTypes       []string
	flagLocations   []string
	flagSources     []string
	flagKeywords    []string
	flagWeekends    bool
	flagFree        bool
	flagChinese     bool
	flagMinPriority int

	// Enrichment flags
	flagTranslation     string
	flagShortSummary    string
	flagDetailedSummary string

	flagLogSource string
	flagLogLimit  int
	flagAddr      string
	flagExitCode  bool
)

// exitCode is set by commands that report through the process status.
var exitCode = ExitSuccess

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weekly-events",
		Short: "Scrape, deduplicate and rank local events for the upcoming week",
		Long: `A CLI tool that scrapes event listings from configured sources, merges
duplicate postings of the same event into canonical records, and selects a
ranked, category-diverse candidate set for review.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to the YAML config file (defaults only when empty)")
	pf.StringVar(&flagEnvFile, "env", config.DefaultEnvFile, "Path to a .env file")
	pf.StringVar(&flagDataDir, "data-dir", "", "Override store.data_dir for the file backend")
	pf.StringVar(&flagFormat, "format", "text", "Output format: text, json or ics")
	pf.BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newRunCmd(),
		newWeekCmd(),
		newCandidatesCmd(),
		newLogsCmd(),
		newEnrichCmd(),
		newDeleteCmd(),
		newServeCmd(),
	)
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scrape cycle and print the report",
		RunE:  runCycle,
	}
	cmd.Flags().StringVar(&flagWeek, "week", "", "Target week (YYYY-MM-DD_to_YYYY-MM-DD); defaults to the upcoming week")
	cmd.Flags().BoolVar(&flagExitCode, "exit-code", false, "Exit with status 2 when new canonical events were created")
	return cmd
}

func newWeekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "List a week's canonical events",
		RunE:  runWeek,
	}
	f := cmd.Flags()
	f.StringVar(&flagWeek, "week", "", "Week identifier; defaults to the upcoming week")
	f.StringVar(&flagSort, "sort", string(SortByDate), "Sort order: date, title, location or rank")
	f.StringVar(&flagDates, "dates", "", "Date range, e.g. 'Nov 14-16' or '2025-11-14..2025-11-16'")
	f.StringSliceVar(&flagTypes, "type", nil, "Event types to include")
	f.StringSliceVar(&flagLocations, "location", nil, "Location substrings to include")
	f.StringSliceVar(&flagSources, "source", nil, "Sources to include")
	f.StringSliceVar(&flagKeywords, "keyword", nil, "Title keywords to include")
	f.BoolVar(&flagWeekends, "weekends", false, "Only Saturday and Sunday events")
	f.BoolVar(&flagFree, "free", false, "Only free events")
	f.BoolVar(&flagChinese, "chinese", false, "Only Chinese-relevant events")
	f.IntVar(&flagMinPriority, "min-priority", 0, "Minimum priority")
	return cmd
}

func newCandidatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Select the ranked candidate set for a week",
		RunE:  runCandidates,
	}
	cmd.Flags().StringVar(&flagWeek, "week", "", "Week identifier; defaults to the upcoming week")
	cmd.Flags().IntVar(&flagMax, "max", 0, "Maximum candidates (defaults to selection.max_count)")
	return cmd
}

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent scraping results",
		RunE:  runLogs,
	}
	cmd.Flags().StringVar(&flagLogSource, "source", "", "Only this source")
	cmd.Flags().StringVar(&flagWeek, "week", "", "Only this week")
	cmd.Flags().IntVar(&flagLogLimit, "limit", 20, "Maximum entries")
	return cmd
}

func newEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich ID",
		Short: "Attach translation or summaries to a canonical event",
		Args:  cobra.ExactArgs(1),
		RunE:  runEnrich,
	}
	cmd.Flags().StringVar(&flagTranslation, "translation", "", "Translated title")
	cmd.Flags().StringVar(&flagShortSummary, "short-summary", "", "Short summary")
	cmd.Flags().StringVar(&flagDetailedSummary, "detailed-summary", "", "Detailed summary")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a canonical event",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (defaults to http.addr)")
	return cmd
}

// app holds what every command needs.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	store   *canonical.Store
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("Closing store failed", logger.Fields{"error": err.Error()})
	}
}

func setup(ctx context.Context) (*app, error) {
	if err := config.LoadEnvFile(flagEnvFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Store.DataDir = flagDataDir
	}
	if flagVerbose {
		cfg.Log.Level = string(logger.LevelDebug)
	}

	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	backend, err := storage.Open(ctx, cfg.StoreOptions(), log)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		store:   canonical.New(backend, cfg.DedupParams(), log),
	}, nil
}

func outputFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(flagFormat))
	switch format {
	case FormatText, FormatJSON, FormatICS:
		return format, nil
	}
	return "", fmt.Errorf("invalid format: %s (must be 'text', 'json' or 'ics')", flagFormat)
}

func targetWeek() (string, error) {
	if flagWeek == "" {
		return event.UpcomingWeek(time.Now()), nil
	}
	if _, _, err := event.ParseWeek(flagWeek); err != nil {
		return "", err
	}
	return flagWeek, nil
}

// runCycle is the main command logic
func runCycle(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	if format == FormatICS {
		return fmt.Errorf("run supports text or json output")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sources := make([]scraper.Source, 0, len(a.cfg.Sources))
	for _, sc := range a.cfg.EnabledSources() {
		src, err := scraper.NewSource(sc, a.log)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	classifier, err := classify.New(a.cfg.Classifier, nil, a.log)
	if err != nil {
		return fmt.Errorf("initializing classifier: %w", err)
	}

	svc, err := pipeline.New(pipeline.Config{
		Store:      a.store,
		Scraper:    scraper.NewRunner(sources, a.cfg.Scrape.Concurrency, a.cfg.FetchOptions(), a.log),
		Normalizer: normalize.New(normalize.NewTimeNormalizer(a.cfg.Time.Offsets, a.log), a.log),
		Batch:      dedup.NewBatch(a.cfg.Dedup.KeyWindow),
		Classifier: classifier,
		Metrics:    a.metrics,
		MaxCount:   a.cfg.Selection.MaxCount,
		Logger:     a.log,
	})
	if err != nil {
		return err
	}

	report, err := svc.Run(ctx, flagWeek)
	if err != nil {
		return err
	}

	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn("Metrics textfile not written", logger.Fields{"error": err.Error()})
	}

	if err := WriteReport(cmd.OutOrStdout(), report, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if flagExitCode && report.Created > 0 {
		exitCode = ExitNewEvents
	}
	return nil
}

func runWeek(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	week, err := targetWeek()
	if err != nil {
		return err
	}
	f, err := filterFromFlags()
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.store.GetWeekEvents(cmd.Context(), week)
	if err != nil {
		return err
	}
	recs = f.Apply(recs)
	if err := sortRecords(recs, SortOrder(strings.ToLower(flagSort))); err != nil {
		return err
	}

	result := &OutputResult{
		GeneratedAt: time.Now().UTC(),
		Week:        week,
		Filter:      f.String(),
		Events:      recs,
		EventCount:  len(recs),
	}
	return WriteOutput(cmd.OutOrStdout(), result, format, flagVerbose)
}

// filterFromFlags routes the filter flags through the same parser the
// HTTP API uses for query strings.
func filterFromFlags() (*filter.Filter, error) {
	v := url.Values{}
	if flagDates != "" {
		v.Set("dates", flagDates)
	}
	v["type"] = flagTypes
	v["location"] = flagLocations
	v["source"] = flagSources
	v["keyword"] = flagKeywords
	v.Set("weekends", strconv.FormatBool(flagWeekends))
	v.Set("free", strconv.FormatBool(flagFree))
	v.Set("chinese", strconv.FormatBool(flagChinese))
	v.Set("min_priority", strconv.Itoa(flagMinPriority))
	return filter.FromValues(v)
}

func runCandidates(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	week, err := targetWeek()
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	maxCount := a.cfg.Selection.MaxCount
	if flagMax > 0 {
		maxCount = flagMax
	}

	set, err := pipeline.Candidates(cmd.Context(), a.store, week, maxCount, time.Now())
	if err != nil {
		return err
	}

	result := &OutputResult{
		GeneratedAt: set.GeneratedAt,
		Week:        week,
		Events:      set.Candidates,
		EventCount:  len(set.Candidates),
		Ranked:      true,
	}
	return WriteOutput(cmd.OutOrStdout(), result, format, flagVerbose)
}

func runLogs(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	logs, err := a.store.ScrapeLogs(cmd.Context(), storage.ScrapeLogQuery{
		Source: flagLogSource,
		Week:   flagWeek,
		Limit:  flagLogLimit,
	})
	if err != nil {
		return err
	}
	return WriteLogs(cmd.OutOrStdout(), logs, format)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid event id: %q", arg)
	}
	return id, nil
}

func runEnrich(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	var en event.Enrichment
	if cmd.Flags().Changed("translation") {
		en.Translation = &flagTranslation
	}
	if cmd.Flags().Changed("short-summary") {
		en.ShortSummary = &flagShortSummary
	}
	if cmd.Flags().Changed("detailed-summary") {
		en.DetailedSummary = &flagDetailedSummary
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.store.Enrich(cmd.Context(), id, en)
	if errors.Is(err, canonical.ErrEmptyEnrichment) {
		return fmt.Errorf("nothing to update: pass --translation, --short-summary or --detailed-summary")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated event %d: %s\n", rec.ID, rec.Title)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted event %d\n", id)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.HTTP.Addr
	if flagAddr != "" {
		addr = flagAddr
	}

	srv := httpapi.NewServer(a.store, a.metrics, a.log, httpapi.Options{
		Addr:     addr,
		MaxCount: a.cfg.Selection.MaxCount,
	})
	return srv.Start(ctx)
}

// Execute runs the CLI and returns the process exit status.
func Execute(args []string, stdout, stderr io.Writer) int {
	exitCode = ExitSuccess

	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return exitCode
}
