package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/vmarkovtsev/athenian-api/pkg/metrics/concurrency"
)

// Output format identifiers.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
)

const (
	ratioPrecision   = 2
	percentPrecision = 1
	percentScale     = 100
	elapsedRounding  = time.Millisecond
	bucketTimeLayout = "2006-01-02 15:04"
)

// ErrUnknownFormat is returned for an unrecognized --format value.
var ErrUnknownFormat = errors.New("unknown output format (want table, json, yaml, or csv)")

// renderResult writes the analysis result in the requested format.
func renderResult(w io.Writer, result *concurrency.Result, format string, noColor bool) error {
	switch format {
	case FormatTable:
		return renderTable(w, result, noColor)
	case FormatJSON:
		return renderJSON(w, result)
	case FormatYAML:
		return renderYAML(w, result)
	case FormatCSV:
		return renderCSV(w, result)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderTable(w io.Writer, result *concurrency.Result, noColor bool) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{
		"Repository", "Bucket", "Runs", "OK", "Fail", "Skip",
		"Mean", "Median", "P95", "Concurrent", "Mean Elapsed",
	})

	totalRuns := 0

	for _, summary := range result.Summaries {
		totalRuns += summary.Count

		tw.AppendRow(table.Row{
			summary.Repository,
			formatBucket(summary.Bucket),
			humanize.Comma(int64(summary.Count)),
			summary.Successes,
			summary.Failures,
			summary.Skips,
			formatRatio(summary.MeanRatio),
			formatRatio(summary.MedianRatio),
			formatRatio(summary.P95Ratio),
			formatPercent(summary.ConcurrentShare),
			summary.MeanElapsed.Round(elapsedRounding).String(),
		})
	}

	tw.Render()

	summaryLine := color.New(color.FgGreen)
	if noColor {
		summaryLine.DisableColor()
	}

	_, err := summaryLine.Fprintf(w, "analyzed %s check runs in %s groups\n",
		humanize.Comma(int64(totalRuns)), humanize.Comma(int64(len(result.Summaries))))
	if err != nil {
		return fmt.Errorf("write summary line: %w", err)
	}

	return nil
}

func renderJSON(w io.Writer, result *concurrency.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(result)
	if err != nil {
		return fmt.Errorf("marshal result to JSON: %w", err)
	}

	return nil
}

func renderYAML(w io.Writer, result *concurrency.Result) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result to YAML: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write YAML result: %w", err)
	}

	return nil
}

// renderCSV writes one row per completed run with its concurrency ratio.
func renderCSV(w io.Writer, result *concurrency.Result) error {
	cw := csv.NewWriter(w)

	err := cw.Write([]string{"repository", "name", "status", "conclusion", "started_at", "completed_at", "ratio"})
	if err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, run := range result.Runs {
		err = cw.Write([]string{
			run.Repository,
			run.Name,
			run.Status,
			run.Conclusion,
			run.StartedAt.Format(time.RFC3339),
			run.CompletedAt.Format(time.RFC3339),
			strconv.FormatFloat(run.Ratio, 'f', -1, 64),
		})
		if err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	cw.Flush()

	flushErr := cw.Error()
	if flushErr != nil {
		return fmt.Errorf("flush CSV output: %w", flushErr)
	}

	return nil
}

func formatBucket(bucket time.Time) string {
	if bucket.IsZero() {
		return "-"
	}

	return bucket.Format(bucketTimeLayout)
}

func formatRatio(ratio float64) string {
	return strconv.FormatFloat(ratio, 'f', ratioPrecision, 64)
}

func formatPercent(share float64) string {
	return strconv.FormatFloat(share*percentScale, 'f', percentPrecision, 64) + "%"
}
