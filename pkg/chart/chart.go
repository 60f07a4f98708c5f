// Package chart renders report rankings as PNG bar charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/3leaps/prowscope/pkg/report"
)

// Chart titles.
const (
	TitleFailedPeriodic     = "Top 10 Failed Periodic Jobs"
	TitleFailedPresubmit    = "Top 10 Failed Presubmit Jobs"
	TitleFailedPostsubmit   = "Top 10 Failed Postsubmit Jobs"
	TitleTriggeredPresubmit = "Top 5 Triggered Presubmit Jobs"
	TitleFlakyPeriodic      = "Top 10 Flaky Periodic Jobs"
)

const (
	height       = 720
	barWidth     = 80
	barSpacing   = 40
	sidePadding  = 120
	minimumWidth = 640
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

var (
	colorSucceeded = drawing.ColorFromHex("2e7d32")
	colorFailed    = drawing.ColorFromHex("c62828")
	colorTotal     = drawing.ColorFromHex("3b528b")
	colorFlaky     = drawing.ColorFromHex("f9a825")
)

// Image is a rendered chart.
type Image struct {
	Title    string
	Filename string
	Data     []byte
}

// Filename returns the file name of a chart titled title.
func Filename(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", "_")) + ".png"
}

type renderer interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func render(title string, r renderer) (*Image, error) {
	var buf bytes.Buffer
	if err := r.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %q: %w", title, err)
	}
	return &Image{Title: title, Filename: Filename(title), Data: buf.Bytes()}, nil
}

// labels returns the display names of jobs. Variants are shown only when
// they differ between jobs.
func labels(jobs []report.IdentifiedJobMetrics) []string {
	ids := make([]report.JobIdentifier, len(jobs))
	for i, j := range jobs {
		ids[i] = j.JobIdentifier
	}
	displayVariant := report.IsVariantUnique(ids)

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strings.ReplaceAll(id.SlackName(displayVariant), "<br>", "\n")
	}
	return out
}

func width(bars int) int {
	w := sidePadding + bars*(barWidth+barSpacing)
	if w < minimumWidth {
		return minimumWidth
	}
	return w
}

func background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20}}
}

// FailingJobs renders the successes and failures of each job as stacked
// bars.
func FailingJobs(title string, jobs []report.IdentifiedJobMetrics) (*Image, error) {
	return stacked(title, jobs, func(j report.IdentifiedJobMetrics) []chart.Value {
		return []chart.Value{
			segment(float64(j.Metrics.Successes), strconv.Itoa(j.Metrics.Successes), colorSucceeded),
			segment(float64(j.Metrics.Failures), strconv.Itoa(j.Metrics.Failures), colorFailed),
		}
	})
}

// TriggeredJobs renders the number of executions of each job.
func TriggeredJobs(title string, jobs []report.IdentifiedJobMetrics) (*Image, error) {
	return stacked(title, jobs, func(j report.IdentifiedJobMetrics) []chart.Value {
		total := j.Metrics.Total()
		return []chart.Value{segment(float64(total), strconv.Itoa(total), colorTotal)}
	})
}

// FlakyJobs renders the flakiness of each job.
func FlakyJobs(title string, jobs []report.IdentifiedJobMetrics) (*Image, error) {
	return stacked(title, jobs, func(j report.IdentifiedJobMetrics) []chart.Value {
		var flakiness float64
		if j.Flakiness != nil {
			flakiness = *j.Flakiness
		}
		return []chart.Value{segment(flakiness, strconv.FormatFloat(flakiness, 'f', 2, 64), colorFlaky)}
	})
}

func segment(value float64, label string, color drawing.Color) chart.Value {
	return chart.Value{
		Label: label,
		Value: value,
		Style: chart.Style{FillColor: color, StrokeColor: color},
	}
}

func stacked(title string, jobs []report.IdentifiedJobMetrics, values func(report.IdentifiedJobMetrics) []chart.Value) (*Image, error) {
	if len(jobs) == 0 {
		return nil, ErrNoData
	}

	names := labels(jobs)
	bars := make([]chart.StackedBar, len(jobs))
	for i, j := range jobs {
		bars[i] = chart.StackedBar{
			Name:   names[i],
			Width:  barWidth,
			Values: values(j),
		}
	}

	return render(title, chart.StackedBarChart{
		Title:      title,
		Background: background(),
		Width:      width(len(bars)),
		Height:     height,
		BarSpacing: barSpacing,
		Bars:       bars,
	})
}
