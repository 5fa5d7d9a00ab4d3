// Package commands implements CLI command handlers for gourcefang.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gourcefang/internal/config"
	"github.com/Sumatoshi-tech/gourcefang/pkg/discover"
	"github.com/Sumatoshi-tech/gourcefang/pkg/extsort"
	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
	"github.com/Sumatoshi-tech/gourcefang/pkg/observability"
	"github.com/Sumatoshi-tech/gourcefang/pkg/pipeline"
	"github.com/Sumatoshi-tech/gourcefang/pkg/safeconv"
	"github.com/Sumatoshi-tech/gourcefang/pkg/version"
)

// ErrPathRequired indicates no scan root was supplied via flag, config
// file or environment.
var ErrPathRequired = errors.New("path is required: pass --path or set it in the configuration")

// GenerateCommand holds flag state for the root command, which turns the
// commit history of one or more repositories into a Gource custom log.
type GenerateCommand struct {
	configPath string

	path             string
	recursive        bool
	include          []string
	exclude          []string
	output           string
	aliases          []string
	aliasesFile      string
	useMergeSort     bool
	sortChunkSize    int
	tempFileLocation string
	maxChangesetSize int
	workers          int
	colorByLanguage  bool
	summary          bool
	logLevel         string
	logJSON          bool
	metricsListen    string
}

// NewRootCommand creates the root command running the full pipeline:
// discover repositories, extract and normalize commits, sort the events
// and write the log.
func NewRootCommand() *cobra.Command {
	gc := &GenerateCommand{}

	cmd := &cobra.Command{
		Use:   "gourcefang",
		Short: "Turn git histories into one time-ordered Gource log",
		Long: `Gourcefang walks the commit history of one or more git repositories
and emits a single Gource custom log ("timestamp|author|action|path"),
globally ordered by commit time:

  gourcefang --path ~/src --recursive | gource --log-format custom -

Large collections can spill sorted chunks to disk (--use-merge-sort) so
memory stays bounded by the chunk size instead of the total history.
Peak temporary disk usage can reach roughly three times the final log
size while chunks and output coexist.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          gc.run,
	}

	registerGenerateFlags(cmd, gc)

	return cmd
}

func registerGenerateFlags(cmd *cobra.Command, gc *GenerateCommand) {
	flags := cmd.Flags()

	flags.StringVar(&gc.configPath, "config", "", "Explicit config file path (default: .gourcefang.yaml in the working directory)")
	flags.StringVarP(&gc.path, "path", "p", "", "Root directory to scan for repositories")
	flags.BoolVarP(&gc.recursive, "recursive", "r", false, "Discover independent repositories anywhere below --path")
	flags.StringSliceVar(&gc.include, "include", nil, "Only process repositories with these directory names")
	flags.StringSliceVar(&gc.exclude, "exclude", nil, "Skip repositories with these directory names")
	flags.StringVarP(&gc.output, "output", "o", "", "Destination file for the log (default: stdout)")
	flags.StringArrayVar(&gc.aliases, "alias", nil, "Author alias as RAW::DISPLAY (repeatable)")
	flags.StringVar(&gc.aliasesFile, "aliases-file", "", "JSON file with author aliases")
	flags.BoolVar(&gc.useMergeSort, "use-merge-sort", false, "Spill sorted chunks to disk and merge them afterwards")
	flags.IntVar(&gc.sortChunkSize, "sort-chunk-size", 0, "Chunk size hint in MB for the external sort (minimum 64, default 4096)")
	flags.StringVar(&gc.tempFileLocation, "temp-file-location", "", "Directory for spill chunks (default: random dir under the working directory)")
	flags.IntVar(&gc.maxChangesetSize, "max-changeset-size", 0, "Drop commits touching more than N files (0 = keep all)")
	flags.IntVar(&gc.workers, "workers", 0, "Concurrent repository workers (0 = 60% of CPU cores)")
	flags.BoolVar(&gc.colorByLanguage, "color-by-language", false, "Append a per-file colour column derived from the file language")
	flags.BoolVar(&gc.summary, "summary", false, "Print a per-repository summary table to stderr")
	flags.StringVar(&gc.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&gc.logJSON, "log-json", false, "Write JSON log lines instead of text")
	flags.StringVar(&gc.metricsListen, "metrics-listen", "", "Serve Prometheus /metrics and /healthz on this address while running")

	cmd.MarkFlagsMutuallyExclusive("include", "exclude")
}

func (gc *GenerateCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := gc.resolveConfig(cmd)
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	return gc.execute(cmd, cfg, providers)
}

// resolveConfig layers explicitly set flags over the file/env
// configuration and validates the result.
func (gc *GenerateCommand) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(gc.configPath)
	if err != nil {
		return nil, err
	}

	gc.applyScanFlags(cmd, cfg)
	gc.applySortFlags(cmd, cfg)
	gc.applyOutputFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.Path == "" {
		return nil, ErrPathRequired
	}

	return cfg, nil
}

func (gc *GenerateCommand) applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("path") {
		cfg.Path = gc.path
	}

	if flags.Changed("recursive") {
		cfg.Recursive = gc.recursive
	}

	if flags.Changed("include") {
		cfg.Include = gc.include
	}

	if flags.Changed("exclude") {
		cfg.Exclude = gc.exclude
	}

	if flags.Changed("alias") {
		cfg.Aliases = gc.aliases
	}

	if flags.Changed("aliases-file") {
		cfg.AliasesFile = gc.aliasesFile
	}

	if flags.Changed("max-changeset-size") {
		cfg.MaxChangesetSize = gc.maxChangesetSize
	}

	if flags.Changed("workers") {
		cfg.Workers = gc.workers
	}
}

func (gc *GenerateCommand) applySortFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("use-merge-sort") {
		cfg.UseMergeSort = gc.useMergeSort
	}

	if flags.Changed("sort-chunk-size") {
		// The flag takes plain megabytes; the config layer also accepts
		// humanized strings.
		cfg.SortChunkSize = strconv.Itoa(gc.sortChunkSize)
	}

	if flags.Changed("temp-file-location") {
		cfg.TempFileLocation = gc.tempFileLocation
	}
}

func (gc *GenerateCommand) applyOutputFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("output") {
		cfg.Output = gc.output
	}

	if flags.Changed("color-by-language") {
		cfg.ColorByLanguage = gc.colorByLanguage
	}

	if flags.Changed("summary") {
		cfg.Summary = gc.summary
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = gc.logLevel
	}

	if flags.Changed("log-json") {
		cfg.LogJSON = gc.logJSON
	}

	if flags.Changed("metrics-listen") {
		cfg.MetricsListen = gc.metricsListen
	}
}

func initObservability(cfg *config.Config) (observability.Providers, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return observability.Providers{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.OTLPInsecure
	obsCfg.SampleRatio = cfg.OTLPSampleRatio
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.LogJSON
	obsCfg.MetricsListen = cfg.MetricsListen

	return observability.Init(obsCfg)
}

func (gc *GenerateCommand) execute(cmd *cobra.Command, cfg *config.Config, providers observability.Providers) error {
	ctx := cmd.Context()
	logger := providers.Logger

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	if cfg.MetricsListen != "" {
		diagnostics, diagErr := observability.NewDiagnosticsServer(cfg.MetricsListen, providers.MetricsRegistry, providers.Tracer)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diagnostics.Close()
			if closeErr != nil {
				logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()

		logger.Info("diagnostics server listening", "addr", diagnostics.Addr())
	}

	aliases, err := loadAliases(cfg)
	if err != nil {
		return err
	}

	repos, err := discoverRepositories(ctx, cfg, providers.Tracer)
	if err != nil {
		return err
	}

	logger.Info("repositories discovered", "count", len(repos), "root", cfg.Path)

	chunkBytes, err := cfg.ChunkSizeBytes()
	if err != nil {
		return err
	}

	var session *extsort.Session

	if cfg.UseMergeSort {
		session, err = extsort.NewSession(cfg.TempFileLocation)
		if err != nil {
			return err
		}

		defer func() {
			closeErr := session.Close()
			if closeErr != nil {
				logger.Warn("temp dir cleanup incomplete, remove it by hand", "dir", session.Dir(), "error", closeErr)
			}
		}()

		logger.Debug("spill session ready", "dir", session.Dir(), "chunk_bytes", chunkBytes)
	}

	acc := extsort.NewAccumulator(session, safeconv.MustUint64ToInt64(chunkBytes))

	stats, err := runPipeline(ctx, cfg, providers, metrics, aliases, repos, acc, logger)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, cfg.Output)
	if err != nil {
		return err
	}

	written, writeErr := writeLog(ctx, cfg, providers.Tracer, metrics, acc, out)

	closeErr := closeOut()

	if writeErr != nil {
		return writeErr
	}

	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}

	logger.Info("log generated",
		"events", written,
		"repositories", len(stats.Repos),
		"skipped", stats.Skipped,
		"spilled_chunks", acc.Spills(),
	)

	if cfg.Summary {
		printSummary(cmd.ErrOrStderr(), stats)
	}

	return nil
}

// discoverRepositories scans the configured root under a span.
func discoverRepositories(ctx context.Context, cfg *config.Config, tracer trace.Tracer) ([]discover.Repo, error) {
	_, span := tracer.Start(ctx, "discover")
	defer span.End()

	filter := discover.Filter{Include: cfg.Include, Exclude: cfg.Exclude}

	repos, err := discover.Scan(cfg.Path, cfg.Recursive, filter)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("repo_count", len(repos)))

	return repos, nil
}

// loadAliases merges the aliases file with the flag/config alias specs.
// Flag entries win on key collision.
func loadAliases(cfg *config.Config) (gource.AliasTable, error) {
	table := gource.AliasTable{}

	if cfg.AliasesFile != "" {
		fromFile, err := gource.LoadAliasFile(cfg.AliasesFile)
		if err != nil {
			return nil, err
		}

		table = fromFile
	}

	err := table.Add(cfg.Aliases)
	if err != nil {
		return nil, err
	}

	return table, nil
}

func runPipeline(
	ctx context.Context,
	cfg *config.Config,
	providers observability.Providers,
	metrics *observability.PipelineMetrics,
	aliases gource.AliasTable,
	repos []discover.Repo,
	acc *extsort.Accumulator,
	logger *slog.Logger,
) (*pipeline.Stats, error) {
	sources := make([]pipeline.CommitSource, 0, len(repos))
	for _, repo := range repos {
		sources = append(sources, pipeline.NewGitSource(repo))
	}

	norm := &pipeline.Normalizer{Aliases: aliases, MaxChangesetSize: cfg.MaxChangesetSize}
	pl := pipeline.New(acc, norm, pipeline.Config{Workers: cfg.Workers, Logger: logger, Metrics: metrics})

	pipeCtx, span := providers.Tracer.Start(ctx, "pipeline")

	stats, err := pl.Run(pipeCtx, sources)
	if err != nil {
		span.End()

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("commit_count", stats.TotalCommits()),
		attribute.Int("event_count", stats.TotalEvents()),
	)
	span.End()

	return stats, nil
}

// openOutput returns the destination writer and a close function. The
// close function is a no-op for stdout.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output %s: %w", path, err)
	}

	return file, file.Close, nil
}

// writeLog merges the accumulated events into one ordered stream and
// writes it to the destination.
func writeLog(
	ctx context.Context,
	cfg *config.Config,
	tracer trace.Tracer,
	metrics *observability.PipelineMetrics,
	acc *extsort.Accumulator,
	out io.Writer,
) (int, error) {
	started := time.Now()

	_, mergeSpan := tracer.Start(ctx, "merge")

	result, err := acc.Finish()
	if err != nil {
		mergeSpan.End()

		return 0, err
	}

	metrics.ObserveSpill(ctx, acc.Spills(), acc.SpilledBytes())

	stream, err := result.Stream()
	if err != nil {
		mergeSpan.End()

		return 0, err
	}

	mergeSpan.SetAttributes(attribute.Bool("sort.in_memory", result.InMemory()))
	mergeSpan.End()

	defer func() {
		_ = stream.Close()
	}()

	writer := gource.NewLogWriter(out)
	if cfg.ColorByLanguage {
		writer.ColorFor = gource.LanguageColor
	}

	_, writeSpan := tracer.Start(ctx, "write")
	defer writeSpan.End()

	written, err := drainStream(stream, writer)
	if err != nil {
		return written, err
	}

	metrics.ObserveMerge(ctx, written, time.Since(started))
	writeSpan.SetAttributes(attribute.Int("event_count", written))

	return written, nil
}

func drainStream(stream extsort.EventStream, writer *gource.LogWriter) (int, error) {
	written := 0

	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return written, err
		}

		writeErr := writer.Write(ev)
		if writeErr != nil {
			return written, writeErr
		}

		written++
	}

	flushErr := writer.Flush()
	if flushErr != nil {
		return written, flushErr
	}

	return written, nil
}

// printSummary renders the per-repository table to the progress stream.
func printSummary(w io.Writer, stats *pipeline.Stats) {
	repos := make([]pipeline.RepoStats, len(stats.Repos))
	copy(repos, stats.Repos)
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Repository", "Commits", "Filtered", "Events", "Elapsed"})

	for _, repo := range repos {
		id := repo.ID
		if id == "" {
			id = "."
		}

		tbl.AppendRow(table.Row{id, repo.Commits, repo.Filtered, repo.Events, repo.Elapsed.Round(time.Millisecond)})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d repositories", len(repos)),
		stats.TotalCommits(),
		stats.TotalFiltered(),
		stats.TotalEvents(),
		"",
	})

	fmt.Fprintln(w, tbl.Render())

	if stats.Skipped > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d repositories skipped, see warnings above\n", stats.Skipped)
	}
}
