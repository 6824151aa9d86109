package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/rtalign/pkg/alg/stats"
	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

const (
	chartWidth  = "100%"
	chartHeight = "480px"
)

// Alignments is the serializable form of one read's alignment candidates.
type Alignments struct {
	ReadID string              `json:"read_id,omitempty" yaml:"read_id,omitempty"`
	Chains []seedtracker.Chain `json:"alignments"        yaml:"alignments"`
}

// WriteAlignments renders chains in the given format. Chains are written in
// the order given, which for tracker output is best candidate first.
func WriteAlignments(w io.Writer, format Format, doc Alignments) error {
	if doc.Chains == nil {
		doc.Chains = []seedtracker.Chain{}
	}

	switch format {
	case FormatTable:
		return writeAlignmentTable(w, doc)
	case FormatText:
		return writeAlignmentText(w, doc)
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatYAML:
		return writeYAML(w, doc)
	case FormatPlot:
		return writeAlignmentPlot(w, doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeAlignmentTable(w io.Writer, doc Alignments) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	if doc.ReadID != "" {
		tbl.SetTitle("read " + doc.ReadID)
	}

	tbl.AppendHeader(table.Row{"#", "ID", "Strand", "Ref", "Events", "Length", "Seeds", "State"})

	total := 0
	lengths := make([]float64, 0, len(doc.Chains))

	for i, c := range doc.Chains {
		tbl.AppendRow(table.Row{
			i + 1,
			c.ID,
			c.Strand.String(),
			fmt.Sprintf("[%d,%d)", c.RefStart, c.RefEnd),
			fmt.Sprintf("[%d,%d)", c.EvtStart, c.EvtEnd),
			c.Length,
			c.Seeds,
			c.State().String(),
		})

		total += c.Length
		lengths = append(lengths, float64(c.Length))
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "Total", total, len(doc.Chains), ""})

	if len(lengths) > 0 {
		tbl.AppendFooter(table.Row{"", "", "", "", "Median", fmt.Sprintf("%.1f", stats.Median(lengths)), "", ""})
	}
	tbl.Render()

	return nil
}

func writeAlignmentText(w io.Writer, doc Alignments) error {
	for _, c := range doc.Chains {
		var err error

		if doc.ReadID != "" {
			_, err = fmt.Fprintf(w, "%s\t%s\n", doc.ReadID, c)
		} else {
			_, err = fmt.Fprintln(w, c.String())
		}

		if err != nil {
			return fmt.Errorf("write alignment: %w", err)
		}
	}

	return nil
}

func writeAlignmentPlot(w io.Writer, doc Alignments) error {
	title := "rtalign alignments"
	if doc.ReadID != "" {
		title += " " + doc.ReadID
	}

	page := components.NewPage()
	page.SetPageTitle(title)

	page.AddCharts(chainLengthChart(doc.Chains), chainDiagonalChart(doc.Chains))

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render alignment plot: %w", err)
	}

	return nil
}

func chainLengthChart(chains []seedtracker.Chain) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Chain length", Subtitle: "Total seed length per chain, best first"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Length"}),
	)

	labels := make([]string, len(chains))
	data := make([]opts.BarData, len(chains))

	for i, c := range chains {
		labels[i] = "#" + strconv.FormatUint(c.ID, 10)
		data[i] = opts.BarData{Value: c.Length}
	}

	bar.SetXAxis(labels)
	bar.AddSeries("Length", data)

	return bar
}

// chainDiagonalChart plots each chain's start and end in (reference, event)
// space so colinear runs show up as short diagonal segments.
func chainDiagonalChart(chains []seedtracker.Chain) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Chain diagonals", Subtitle: "Start and end of each chain"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Reference", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Event", Type: "value"}),
	)

	forward := make([]opts.ScatterData, 0, 2*len(chains))
	reverse := make([]opts.ScatterData, 0, 2*len(chains))

	for _, c := range chains {
		points := []opts.ScatterData{
			{Name: c.String(), Value: []int{c.RefStart, c.EvtStart}},
			{Name: c.String(), Value: []int{c.RefEnd, c.EvtEnd}},
		}

		if c.Strand == seedtracker.Reverse {
			reverse = append(reverse, points...)
		} else {
			forward = append(forward, points...)
		}
	}

	scatter.AddSeries(seedtracker.Forward.String(), forward)
	scatter.AddSeries(seedtracker.Reverse.String(), reverse)

	return scatter
}
