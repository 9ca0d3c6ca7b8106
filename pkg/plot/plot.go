// Package plot renders analysis results as HTML charts.
package plot

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vmarkovtsev/athenian-api/pkg/metrics/concurrency"
)

// Chart colors.
const (
	colorMean    = "#2563eb" // blue-600.
	colorP95     = "#ca8a04" // yellow-600.
	colorMax     = "#dc2626" // red-600.
	colorText    = "#44403c" // stone-700.
	colorMuted   = "#78716c" // stone-500.
	colorAxis    = "#a8a29e" // stone-400.
	colorGrid    = "#e7e5e4" // stone-200.
	chartWidth   = "100%"
	chartHeight  = "500px"
	bucketLayout = "2006-01-02 15:04"
)

// RatioBars builds a bar chart of per-group mean and p95 concurrency ratios.
func RatioBars(summaries []concurrency.Summary) *charts.Bar {
	labels := make([]string, len(summaries))
	mean := make([]opts.BarData, len(summaries))
	p95 := make([]opts.BarData, len(summaries))

	for i, summary := range summaries {
		labels[i] = groupLabel(summary)
		mean[i] = opts.BarData{Value: summary.MeanRatio}
		p95[i] = opts.BarData{Value: summary.P95Ratio}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions("Concurrency ratio by group", "ratio")...)
	bar.SetXAxis(labels)
	bar.AddSeries("mean", mean, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorMean}))
	bar.AddSeries("p95", p95, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorP95}))

	return bar
}

// TimelineLine builds a line chart of mean and max ratios over time buckets.
func TimelineLine(points []concurrency.TimelinePoint) *charts.Line {
	labels := make([]string, len(points))
	mean := make([]opts.LineData, len(points))
	maxima := make([]opts.LineData, len(points))

	for i, point := range points {
		labels[i] = point.Start.Format(time.DateOnly)
		mean[i] = opts.LineData{Value: point.MeanRatio}
		maxima[i] = opts.LineData{Value: point.MaxRatio}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(globalOptions("Concurrency ratio over time", "ratio")...)
	line.SetXAxis(labels)
	line.AddSeries("mean", mean, charts.WithLineStyleOpts(opts.LineStyle{Color: colorMean}))
	line.AddSeries("max", maxima, charts.WithLineStyleOpts(opts.LineStyle{Color: colorMax}))

	return line
}

// WritePage renders the given charts into a single HTML page.
func WritePage(w io.Writer, title string, charters ...components.Charter) error {
	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(charters...)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot page: %w", err)
	}

	return nil
}

func groupLabel(summary concurrency.Summary) string {
	if summary.Bucket.IsZero() {
		return summary.Repository
	}

	return summary.Repository + " @ " + summary.Bucket.Format(bucketLayout)
}

func globalOptions(title, yAxisLabel string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			Left:       "center",
			TitleStyle: &opts.TextStyle{Color: colorText},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{
			Show:      opts.Bool(true),
			Top:       "8%",
			Left:      "center",
			TextStyle: &opts.TextStyle{Color: colorMuted},
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Color: colorMuted},
			AxisLine:  &opts.AxisLine{LineStyle: &opts.LineStyle{Color: colorAxis}},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      yAxisLabel,
			AxisLabel: &opts.AxisLabel{Color: colorMuted},
			AxisLine:  &opts.AxisLine{LineStyle: &opts.LineStyle{Color: colorAxis}},
			SplitLine: &opts.SplitLine{
				Show:      opts.Bool(true),
				LineStyle: &opts.LineStyle{Color: colorGrid},
			},
		}),
	}
}
