package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReposTotal      = "gourcefang.repos.total"
	metricCommitsTotal    = "gourcefang.commits.total"
	metricCommitsFiltered = "gourcefang.commits.filtered.total"
	metricEventsTotal     = "gourcefang.events.total"
	metricRepoDuration    = "gourcefang.repo.duration.seconds"
	metricSpillChunks     = "gourcefang.sort.spill.chunks.total"
	metricSpillBytes      = "gourcefang.sort.spill.bytes.total"
	metricEventsWritten   = "gourcefang.output.events.total"
	metricMergeDuration   = "gourcefang.merge.duration.seconds"

	attrStatus = "status"

	statusOK      = "ok"
	statusSkipped = "skipped"
)

// durationBucketBoundaries covers 10ms to 600s; repository walks range from
// sub-second toy repos to multi-minute monorepo histories.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// PipelineMetrics holds the OTel instruments for the commit-to-event
// pipeline. All observation methods are safe to call on a nil receiver,
// so callers without metrics wiring pass nil and skip the checks.
type PipelineMetrics struct {
	reposTotal      metric.Int64Counter
	commitsTotal    metric.Int64Counter
	commitsFiltered metric.Int64Counter
	eventsTotal     metric.Int64Counter
	repoDuration    metric.Float64Histogram
	spillChunks     metric.Int64Counter
	spillBytes      metric.Int64Counter
	eventsWritten   metric.Int64Counter
	mergeDuration   metric.Float64Histogram
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		reposTotal:      b.counter(metricReposTotal, "Total repositories processed by outcome", "{repository}"),
		commitsTotal:    b.counter(metricCommitsTotal, "Total commits converted to events", "{commit}"),
		commitsFiltered: b.counter(metricCommitsFiltered, "Total commits dropped by the changeset filter", "{commit}"),
		eventsTotal:     b.counter(metricEventsTotal, "Total events pushed into the sorter", "{event}"),
		repoDuration:    b.histogram(metricRepoDuration, "Per-repository processing duration in seconds", "s", durationBucketBoundaries...),
		spillChunks:     b.counter(metricSpillChunks, "Total sorted chunks spilled to disk", "{chunk}"),
		spillBytes:      b.counter(metricSpillBytes, "Total bytes spilled to disk before compression", "By"),
		eventsWritten:   b.counter(metricEventsWritten, "Total events written to the output log", "{event}"),
		mergeDuration:   b.histogram(metricMergeDuration, "Merge and write phase duration in seconds", "s", durationBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// ObserveRepo records a successfully processed repository.
func (pm *PipelineMetrics) ObserveRepo(ctx context.Context, commits, filtered, events int, elapsed time.Duration) {
	if pm == nil {
		return
	}

	pm.reposTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, statusOK)))
	pm.commitsTotal.Add(ctx, int64(commits))
	pm.commitsFiltered.Add(ctx, int64(filtered))
	pm.eventsTotal.Add(ctx, int64(events))
	pm.repoDuration.Record(ctx, elapsed.Seconds())
}

// ObserveSkip records a repository that failed and was skipped.
func (pm *PipelineMetrics) ObserveSkip(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.reposTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, statusSkipped)))
}

// ObserveSpill records chunks written to disk by the external sorter.
func (pm *PipelineMetrics) ObserveSpill(ctx context.Context, chunks int, bytes int64) {
	if pm == nil {
		return
	}

	pm.spillChunks.Add(ctx, int64(chunks))
	pm.spillBytes.Add(ctx, bytes)
}

// ObserveMerge records the completed merge and write phase.
func (pm *PipelineMetrics) ObserveMerge(ctx context.Context, events int, elapsed time.Duration) {
	if pm == nil {
		return
	}

	pm.eventsWritten.Add(ctx, int64(events))
	pm.mergeDuration.Record(ctx, elapsed.Seconds())
}

// metricBuilder accumulates OTel instrument creation errors,
// enabling batch construction with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

// setErr records the first instrument creation error.
func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}
