package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmarkovtsev/athenian-api/pkg/checkrun/timeline"
	"github.com/vmarkovtsev/athenian-api/pkg/metrics/concurrency"
	"github.com/vmarkovtsev/athenian-api/pkg/plot"
	"github.com/vmarkovtsev/athenian-api/pkg/resultstore"
)

const (
	plotDefaultTitle = "athenian"
	plotFilePerm     = 0o644
)

var (
	// ErrNoPlotOutput is returned when the --output flag is not set.
	ErrNoPlotOutput = errors.New("output file is required (use --output)")

	// ErrEmptyResult is returned when the snapshot contains no analyzed runs.
	ErrEmptyResult = errors.New("snapshot contains no analyzed runs")
)

// PlotCommand holds configuration for the plot command.
type PlotCommand struct {
	outputPath string
	title      string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand() *cobra.Command {
	pc := &PlotCommand{
		title: plotDefaultTitle,
	}

	cmd := &cobra.Command{
		Use:   "plot <snapshot>",
		Short: "Render a saved result snapshot as HTML charts",
		Long: "Render a snapshot produced by 'compute --save' into an HTML page " +
			"with per-group ratio bars and a ratio timeline.",
		Args: cobra.ExactArgs(1),
		RunE: pc.run,
	}

	cmd.Flags().StringVarP(&pc.outputPath, "output", "o", "", "Output HTML file")
	cmd.Flags().StringVar(&pc.title, "title", plotDefaultTitle, "Page title")

	return cmd
}

func (pc *PlotCommand) run(_ *cobra.Command, args []string) error {
	if pc.outputPath == "" {
		return ErrNoPlotOutput
	}

	result, err := resultstore.LoadFile(args[0])
	if err != nil {
		return err
	}

	if len(result.Runs) == 0 {
		return ErrEmptyResult
	}

	file, err := os.OpenFile(pc.outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, plotFilePerm)
	if err != nil {
		return fmt.Errorf("create plot output: %w", err)
	}

	defer file.Close()

	points := concurrency.Timeline(result, timeline.Build(runRange(result.Runs)))

	return plot.WritePage(file, pc.title, plot.RatioBars(result.Summaries), plot.TimelineLine(points))
}

// runRange returns the start-time span covered by the analyzed runs.
func runRange(runs []concurrency.Run) (time.Time, time.Time) {
	from, to := runs[0].StartedAt, runs[0].StartedAt

	for _, run := range runs[1:] {
		if run.StartedAt.Before(from) {
			from = run.StartedAt
		}

		if run.StartedAt.After(to) {
			to = run.StartedAt
		}
	}

	return from, to
}
