// Package pipeline drives the repository fan-out: a fixed-size worker
// pool reads one repository per worker, normalizes its commits into
// events and routes every event to the shared accumulator. Repository
// failures are skipped with a warning; accumulator failures abort the
// whole run.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/gourcefang/pkg/extsort"
	"github.com/Sumatoshi-tech/gourcefang/pkg/observability"
)

// defaultCPUPercent is the share of available CPUs used when no worker
// count is configured.
const defaultCPUPercent = 60

// RepoStats summarizes one repository's contribution to a run.
type RepoStats struct {
	// ID is the repository identifier.
	ID string

	// Commits is the number of commits that produced events.
	Commits int

	// Filtered is the number of commits dropped by the changeset filter.
	Filtered int

	// Events is the number of events routed to the accumulator.
	Events int

	// Elapsed is the wall time spent reading this repository.
	Elapsed time.Duration
}

// Stats summarizes a pipeline run. Repos holds per-repository counters
// ordered by repository id.
type Stats struct {
	Repos   []RepoStats
	Skipped int
}

// TotalCommits returns the number of commits that produced events.
func (s *Stats) TotalCommits() int {
	total := 0
	for _, repo := range s.Repos {
		total += repo.Commits
	}

	return total
}

// TotalFiltered returns the number of commits dropped by the changeset filter.
func (s *Stats) TotalFiltered() int {
	total := 0
	for _, repo := range s.Repos {
		total += repo.Filtered
	}

	return total
}

// TotalEvents returns the number of events routed to the accumulator.
func (s *Stats) TotalEvents() int {
	total := 0
	for _, repo := range s.Repos {
		total += repo.Events
	}

	return total
}

// abortError marks failures that must stop the whole worker pool, as
// opposed to repository-scoped failures that are skipped.
type abortError struct {
	err error
}

func (e *abortError) Error() string {
	return e.err.Error()
}

func (e *abortError) Unwrap() error {
	return e.err
}

// Config carries the optional pipeline collaborators.
type Config struct {
	// Workers caps the number of repositories processed concurrently.
	// Zero selects the default of roughly 60% of available CPUs.
	Workers int

	// Logger receives per-repository warnings. Nil selects slog.Default.
	Logger *slog.Logger

	// Metrics receives pipeline instrumentation. Nil disables it.
	Metrics *observability.PipelineMetrics
}

// Pipeline coordinates parallel repository processing.
type Pipeline struct {
	acc     *extsort.Accumulator
	norm    *Normalizer
	workers int
	logger  *slog.Logger
	metrics *observability.PipelineMetrics

	mu      sync.Mutex
	repos   []RepoStats
	skipped int
}

// New creates a pipeline feeding the given accumulator.
func New(acc *extsort.Accumulator, norm *Normalizer, cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		acc:     acc,
		norm:    norm,
		workers: workers,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// DefaultWorkers returns the default worker pool size, roughly 60% of
// the available CPUs.
func DefaultWorkers() int {
	workers := runtime.NumCPU() * defaultCPUPercent / 100
	if workers < 1 {
		workers = 1
	}

	return workers
}

// Run processes every source through the worker pool and returns the
// run's statistics. The first accumulator failure or context
// cancellation aborts all workers; repository-scoped failures only skip
// the failing repository.
func (p *Pipeline) Run(ctx context.Context, sources []CommitSource) (*Stats, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for _, source := range sources {
		group.Go(func() error {
			runErr := p.processSource(groupCtx, source)
			if runErr == nil {
				return nil
			}

			var abort *abortError
			if errors.As(runErr, &abort) {
				return abort.err
			}

			if groupCtx.Err() != nil {
				return runErr
			}

			p.logger.Warn("skipping repository", "repo", source.ID(), "error", runErr)
			p.recordSkip(groupCtx)

			return nil
		})
	}

	waitErr := group.Wait()

	return p.snapshot(), waitErr
}

func (p *Pipeline) processSource(ctx context.Context, source CommitSource) error {
	start := time.Now()
	stats := RepoStats{ID: source.ID()}

	err := source.Commits(ctx, func(commit Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		events, dropped := p.norm.Normalize(source.ID(), commit)
		if dropped {
			stats.Filtered++

			return nil
		}

		if len(events) == 0 {
			return nil
		}

		for _, event := range events {
			pushErr := p.acc.Push(event)
			if pushErr != nil {
				return &abortError{err: pushErr}
			}
		}

		stats.Commits++
		stats.Events += len(events)

		return nil
	})
	if err != nil {
		return err
	}

	stats.Elapsed = time.Since(start)
	p.recordRepo(ctx, stats)

	return nil
}

func (p *Pipeline) recordRepo(ctx context.Context, stats RepoStats) {
	p.mu.Lock()
	p.repos = append(p.repos, stats)
	p.mu.Unlock()

	p.metrics.ObserveRepo(ctx, stats.Commits, stats.Filtered, stats.Events, stats.Elapsed)
}

func (p *Pipeline) recordSkip(ctx context.Context) {
	p.mu.Lock()
	p.skipped++
	p.mu.Unlock()

	p.metrics.ObserveSkip(ctx)
}

func (p *Pipeline) snapshot() *Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	repos := make([]RepoStats, len(p.repos))
	copy(repos, p.repos)

	sort.Slice(repos, func(i, j int) bool {
		return repos[i].ID < repos[j].ID
	})

	return &Stats{Repos: repos, Skipped: p.skipped}
}
