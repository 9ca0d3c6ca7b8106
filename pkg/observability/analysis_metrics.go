package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunsTotal       = "athenian.analysis.check_runs.total"
	metricGroupsTotal     = "athenian.analysis.groups.total"
	metricComputeDuration = "athenian.analysis.compute.duration.seconds"

	attrSource = "source"
)

// durationBucketBoundaries are histogram boundaries for compute durations,
// in seconds.
var durationBucketBoundaries = []float64{
	0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300,
}

// AnalysisMetrics holds OTel instruments for analysis-specific metrics.
type AnalysisMetrics struct {
	runsTotal       metric.Int64Counter
	groupsTotal     metric.Int64Counter
	computeDuration metric.Float64Histogram
}

// NewAnalysisMetrics creates analysis metric instruments from the given meter.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	runs, err := mt.Int64Counter(metricRunsTotal,
		metric.WithDescription("Total check runs analyzed"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunsTotal, err)
	}

	groups, err := mt.Int64Counter(metricGroupsTotal,
		metric.WithDescription("Total interval groups swept"),
		metric.WithUnit("{group}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGroupsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricComputeDuration,
		metric.WithDescription("End-to-end concurrency computation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricComputeDuration, err)
	}

	return &AnalysisMetrics{
		runsTotal:       runs,
		groupsTotal:     groups,
		computeDuration: duration,
	}, nil
}

// RecordAnalysis records the outcome of one computed analysis.
func (am *AnalysisMetrics) RecordAnalysis(ctx context.Context, source string, runs, groups int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrSource, source))

	am.runsTotal.Add(ctx, int64(runs), attrs)
	am.groupsTotal.Add(ctx, int64(groups), attrs)
	am.computeDuration.Record(ctx, elapsed.Seconds(), attrs)
}
