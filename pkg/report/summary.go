package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/rtalign/pkg/alg/stats"
)

// Summary aggregates a replay run across all reads.
type Summary struct {
	Reads        int64         `json:"reads"         yaml:"reads"`
	Aligned      int64         `json:"aligned"       yaml:"aligned"`
	Failed       int64         `json:"failed"        yaml:"failed"`
	Samples      int64         `json:"samples"       yaml:"samples"`
	Seeds        int64         `json:"seeds"         yaml:"seeds"`
	Chains       int64         `json:"chains"        yaml:"chains"`
	Backpressure int64         `json:"backpressure"  yaml:"backpressure"`
	Discarded    int64         `json:"discarded"     yaml:"discarded"`
	Elapsed      time.Duration `json:"elapsed"       yaml:"elapsed"`
	// BestLengths holds the best chain length of every read.
	BestLengths []float64 `json:"-" yaml:"-"`
	// Latencies holds per-read processing time in seconds.
	Latencies []float64 `json:"-" yaml:"-"`
}

// SamplesPerSecond is the overall sample throughput of the run.
func (s Summary) SamplesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}

	return float64(s.Samples) / s.Elapsed.Seconds()
}

// WriteSummary prints the run summary as a table followed by a colored
// verdict line. Colors are emitted only when colorize is set.
func WriteSummary(w io.Writer, s Summary, colorize bool) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Replay summary")
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Reads", humanize.Comma(s.Reads)},
		{"Aligned", humanize.Comma(s.Aligned)},
		{"Failed", humanize.Comma(s.Failed)},
		{"Samples", humanize.Comma(s.Samples)},
		{"Seeds", humanize.Comma(s.Seeds)},
		{"Chains", humanize.Comma(s.Chains)},
		{"Backpressure events", humanize.Comma(s.Backpressure)},
		{"Discarded samples", humanize.Comma(s.Discarded)},
	})

	if len(s.BestLengths) > 0 {
		q := stats.Quantiles(s.BestLengths, stats.PercentileMedian, stats.PercentileP95)

		tbl.AppendSeparator()
		tbl.AppendRows([]table.Row{
			{"Best length mean", fmt.Sprintf("%.1f", stats.Mean(s.BestLengths))},
			{"Best length p50", fmt.Sprintf("%.0f", q[0])},
			{"Best length p95", fmt.Sprintf("%.0f", q[1])},
			{"Best length max", fmt.Sprintf("%.0f", stats.Max(s.BestLengths))},
		})
	}

	if len(s.Latencies) > 0 {
		q := stats.Quantiles(s.Latencies, stats.PercentileMedian, stats.PercentileP95)

		tbl.AppendSeparator()
		tbl.AppendRows([]table.Row{
			{"Read latency p50", seconds(q[0])},
			{"Read latency p95", seconds(q[1])},
		})
	}

	tbl.AppendFooter(table.Row{
		"Elapsed",
		fmt.Sprintf("%s (%s samples/s)", s.Elapsed.Round(time.Millisecond), humanize.SIWithDigits(s.SamplesPerSecond(), 1, "")),
	})
	tbl.Render()

	return writeVerdict(w, s, colorize)
}

func writeVerdict(w io.Writer, s Summary, colorize bool) error {
	c := color.New(color.FgGreen)
	msg := fmt.Sprintf("%s of %s reads aligned\n", humanize.Comma(s.Aligned), humanize.Comma(s.Reads))

	switch {
	case s.Failed > 0:
		c = color.New(color.FgRed)
		msg = fmt.Sprintf("%s reads failed, %s of %s aligned\n",
			humanize.Comma(s.Failed), humanize.Comma(s.Aligned), humanize.Comma(s.Reads))
	case s.Aligned < s.Reads:
		c = color.New(color.FgYellow)
	}

	if colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	_, err := c.Fprint(w, msg)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func seconds(v float64) string {
	return time.Duration(v * float64(time.Second)).Round(time.Microsecond).String()
}
