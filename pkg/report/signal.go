package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/rtalign/pkg/alg/stats"
)

// Signal pairs raw samples with their normalized values. Normalized may be
// shorter than Raw when trailing samples could not be scaled.
type Signal struct {
	ReadID     string    `json:"read_id,omitempty" yaml:"read_id,omitempty"`
	TargetMean float64   `json:"target_mean"       yaml:"target_mean"`
	TargetStd  float64   `json:"target_stdev"      yaml:"target_stdev"`
	Mean       float64   `json:"mean"              yaml:"mean"`
	Stdev      float64   `json:"stdev"             yaml:"stdev"`
	Raw        []float64 `json:"raw"               yaml:"raw"`
	Normalized []float64 `json:"normalized"        yaml:"normalized"`
}

// WriteSignal renders a signal in the given format. The text format emits one
// normalized value per line so it can be piped back into other tools.
func WriteSignal(w io.Writer, format Format, sig Signal) error {
	switch format {
	case FormatText:
		return writeSignalText(w, sig)
	case FormatTable:
		return writeSignalTable(w, sig)
	case FormatJSON:
		return writeJSON(w, sig)
	case FormatYAML:
		return writeYAML(w, sig)
	case FormatPlot:
		return writeSignalPlot(w, sig)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeSignalText(w io.Writer, sig Signal) error {
	bw := bufio.NewWriter(w)

	for _, v := range sig.Normalized {
		bw.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
		bw.WriteByte('\n')
	}

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("write signal: %w", err)
	}

	return nil
}

func writeSignalTable(w io.Writer, sig Signal) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	if sig.ReadID != "" {
		tbl.SetTitle("read " + sig.ReadID)
	}

	tbl.AppendHeader(table.Row{"#", "Raw", "Normalized"})

	for i, raw := range sig.Raw {
		row := table.Row{i, raw, ""}
		if i < len(sig.Normalized) {
			row[2] = fmt.Sprintf("%.6f", sig.Normalized[i])
		}

		tbl.AppendRow(row)
	}

	tbl.AppendFooter(table.Row{
		"Mean/Stdev",
		fmt.Sprintf("%.3f / %.3f", sig.Mean, sig.Stdev),
		fmt.Sprintf("%.3f / %.3f", sig.TargetMean, sig.TargetStd),
	})

	if len(sig.Normalized) > 0 {
		mean, stdev := stats.MeanStdDev(sig.Normalized)
		tbl.AppendFooter(table.Row{"Output", "", fmt.Sprintf("%.3f / %.3f", mean, stdev)})
	}

	tbl.Render()

	return nil
}

func writeSignalPlot(w io.Writer, sig Signal) error {
	title := "rtalign signal"
	if sig.ReadID != "" {
		title += " " + sig.ReadID
	}

	page := components.NewPage()
	page.SetPageTitle(title)

	page.AddCharts(
		signalChart("Raw signal", "Instrument samples", "Raw", sig.Raw),
		signalChart("Normalized signal",
			fmt.Sprintf("Target mean %.3g, stdev %.3g", sig.TargetMean, sig.TargetStd),
			"Normalized", sig.Normalized),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render signal plot: %w", err)
	}

	return nil
}

func signalChart(title, subtitle, series string, values []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sample"}),
		charts.WithYAxisOpts(opts.YAxis{Name: series}),
	)

	labels := make([]int, len(values))
	data := make([]opts.LineData, len(values))

	for i, v := range values {
		labels[i] = i
		data[i] = opts.LineData{Value: v}
	}

	line.SetXAxis(labels).AddSeries(series, data).SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	return line
}
