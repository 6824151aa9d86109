package commands_test

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/Sumatoshi-tech/rtalign/cmd/rtalign/commands"
	"github.com/Sumatoshi-tech/rtalign/pkg/config"
	"github.com/Sumatoshi-tech/rtalign/pkg/normalizer"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
	"github.com/Sumatoshi-tech/rtalign/pkg/readuntil"
	"github.com/Sumatoshi-tech/rtalign/pkg/report"
	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

const tolerance = 1e-9

// exampleHits are three seeds of which the first two are colinear.
const exampleHits = `# ref_start ref_end evt_start evt_end length
100	110	5	6	10
111	121	6	7	10
500	510	50	51	10
`

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cmd := commands.NewRootCommand()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())

	return outBuf.String(), errBuf.String(), err
}

func parseLines(t *testing.T, out string) []float64 {
	t.Helper()

	var values []float64

	for line := range strings.Lines(out) {
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		require.NoError(t, err)

		values = append(values, v)
	}

	return values
}

func sampleText(samples []float64) string {
	var sb strings.Builder

	for _, s := range samples {
		fmt.Fprintf(&sb, "%g\n", s)
	}

	return sb.String()
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "rtalign "))
	assert.Contains(t, out, "commit:")
}

func TestNormalize_BatchText(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "1\n2\n3\n4\n", "normalize")
	require.NoError(t, err)

	values := parseLines(t, out)
	require.Len(t, values, 4)

	mean, std := stat.PopMeanStdDev(values, nil)
	assert.InDelta(t, 0.0, mean, 1e-6)
	assert.InDelta(t, 1.0, std, 1e-6)
	assert.InDelta(t, -1.341641, values[0], 1e-6)
}

func TestNormalize_TargetFlagsJSON(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "1\n2\n3\n4\n", "normalize", "-f", "json", "--target-mean", "100", "--target-stdev", "10")
	require.NoError(t, err)

	var sig report.Signal
	require.NoError(t, json.Unmarshal([]byte(out), &sig))

	assert.InDelta(t, 100.0, sig.TargetMean, tolerance)
	assert.InDelta(t, 10.0, sig.TargetStd, tolerance)
	assert.InDelta(t, 2.5, sig.Mean, tolerance)
	assert.Equal(t, []float64{1, 2, 3, 4}, sig.Raw)

	mean, std := stat.PopMeanStdDev(sig.Normalized, nil)
	assert.InDelta(t, 100.0, mean, 1e-9)
	assert.InDelta(t, 10.0, std, 1e-9)
}

func TestNormalize_StreamDrainsEverySample(t *testing.T) {
	t.Parallel()

	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	out, _, err := execute(t, sampleText(samples), "normalize", "--stream", "--buffer-size", "4")
	require.NoError(t, err)

	values := parseLines(t, out)
	require.Len(t, values, len(samples))

	// The first window is exactly [1,4].
	mean, std := stat.PopMeanStdDev(values[:4], nil)
	assert.InDelta(t, 0.0, mean, 1e-6)
	assert.InDelta(t, 1.0, std, 1e-6)
}

func TestNormalize_GzipFileSetsReadID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "read42.txt.gz")

	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("10\n20\n30\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	out, _, err := execute(t, "", "normalize", "-f", "json", path)
	require.NoError(t, err)

	var sig report.Signal
	require.NoError(t, json.Unmarshal([]byte(out), &sig))
	assert.Equal(t, "read42.txt.gz", sig.ReadID)
	assert.Len(t, sig.Normalized, 3)
}

func TestNormalize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  error
	}{
		{"empty input", "# nothing\n", nil, commands.ErrNoSamples},
		{"unknown format", "1\n2\n", []string{"-f", "svg"}, report.ErrUnknownFormat},
		{"constant signal", "5\n5\n5\n", nil, normalizer.ErrNoVariance},
		{"zero target stdev", "1\n2\n", []string{"--target-stdev", "0"}, config.ErrInvalidTargetStdev},
		{"malformed sample", "1\nabc\n", nil, readio.ErrMalformedSample},
		{"bad log level", "1\n2\n", []string{"--log-level", "loud"}, config.ErrInvalidLogLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := execute(t, tc.stdin, append([]string{"normalize"}, tc.args...)...)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func decodeAlignments(t *testing.T, out string) report.Alignments {
	t.Helper()

	var doc report.Alignments
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	return doc
}

func TestChain_ExampleSeeds(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, exampleHits, "chain", "-f", "json", "--max-ref-gap", "2", "--max-evt-gap", "2")
	require.NoError(t, err)

	doc := decodeAlignments(t, out)
	require.Len(t, doc.Chains, 2)

	assert.Equal(t, 100, doc.Chains[0].RefStart)
	assert.Equal(t, 121, doc.Chains[0].RefEnd)
	assert.Equal(t, 20, doc.Chains[0].Length)
	assert.Equal(t, 500, doc.Chains[1].RefStart)
	assert.Equal(t, 10, doc.Chains[1].Length)
}

func TestChain_MinLength(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, exampleHits, "chain", "-f", "json", "--min-length", "15", "--read-id", "r1")
	require.NoError(t, err)

	doc := decodeAlignments(t, out)
	assert.Equal(t, "r1", doc.ReadID)
	require.Len(t, doc.Chains, 1)
	assert.Equal(t, 20, doc.Chains[0].Length)

	out, _, err = execute(t, exampleHits, "chain", "-f", "json", "--min-length", "25")
	require.NoError(t, err)
	assert.Empty(t, decodeAlignments(t, out).Chains)
}

func TestChain_TableAndText(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, exampleHits, "chain")
	require.NoError(t, err)
	assert.Contains(t, out, "[100,121)")
	assert.Contains(t, out, "extended")

	out, _, err = execute(t, exampleHits, "chain", "-f", "text")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestChain_ConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rtalign.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  min_length: 15\n"), 0o600))

	out, _, err := execute(t, exampleHits, "chain", "-f", "json", "--config", path)
	require.NoError(t, err)
	assert.Len(t, decodeAlignments(t, out).Chains, 1)
}

func TestChain_InvalidPolicy(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, exampleHits, "chain", "--max-ref-gap=-1")
	require.ErrorIs(t, err, config.ErrInvalidGap)
}

func TestChain_SnapshotResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lines := strings.Split(strings.TrimSpace(exampleHits), "\n")

	out, _, err := execute(t, lines[1]+"\n", "chain", "-f", "json", "--snapshot-dir", dir)
	require.NoError(t, err)
	require.Len(t, decodeAlignments(t, out).Chains, 1)
	assert.FileExists(t, seedtracker.SnapshotPath(dir))

	out, _, err = execute(t, lines[2]+"\n"+lines[3]+"\n", "chain", "-f", "json", "--snapshot-dir", dir)
	require.NoError(t, err)

	doc := decodeAlignments(t, out)
	require.Len(t, doc.Chains, 2)
	assert.Equal(t, 20, doc.Chains[0].Length)
	assert.Equal(t, 2, doc.Chains[0].Seeds)

	tracker, err := seedtracker.LoadSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, tracker.Stats().Seeds)
}

func recordLine(t *testing.T, rec readio.Record) string {
	t.Helper()

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	return string(data) + "\n"
}

func wave(n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 80 + float64(i%7)*3 + float64(i%3)
	}

	return samples
}

func exampleSeeds(t *testing.T) []seedtracker.Hit {
	t.Helper()

	hits, err := readio.ReadHits(strings.NewReader(exampleHits))
	require.NoError(t, err)

	return hits
}

func decodeResults(t *testing.T, out string) map[string]readuntil.Result {
	t.Helper()

	results := make(map[string]readuntil.Result)

	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)

	for sc.Scan() {
		var res readuntil.Result
		require.NoError(t, json.Unmarshal(sc.Bytes(), &res))

		results[res.ID] = res
	}

	require.NoError(t, sc.Err())

	return results
}

func TestReplay_StreamsResultsAndSummary(t *testing.T) {
	t.Parallel()

	input := recordLine(t, readio.Record{ID: "a", Samples: wave(1000), Seeds: exampleSeeds(t)}) +
		recordLine(t, readio.Record{ID: "b", Samples: wave(300)}) +
		recordLine(t, readio.Record{ID: "c", Samples: wave(50), Seeds: exampleSeeds(t)[:1]})

	out, errOut, err := execute(t, input, "replay", "--workers", "2", "--chunk-size", "100", "--no-color")
	require.NoError(t, err)

	results := decodeResults(t, out)
	require.Len(t, results, 3)

	a := results["a"]
	assert.Empty(t, a.Err)
	assert.Equal(t, 1000, a.Samples)
	assert.Equal(t, 3, a.Seeds)
	require.NotEmpty(t, a.Alignments)
	assert.Equal(t, 20, a.BestLength())

	assert.Empty(t, results["b"].Alignments)
	assert.Len(t, results["c"].Alignments, 1)

	assert.Contains(t, errOut, "2 of 3 reads aligned")
	assert.NotContains(t, errOut, "\x1b[")
}

func TestReplay_FailedReadDoesNotStopRun(t *testing.T) {
	t.Parallel()

	input := recordLine(t, readio.Record{ID: "ok", Samples: wave(200)}) +
		`{"id":"empty","samples":[]}` + "\n"

	out, errOut, err := execute(t, input, "replay", "--no-color")
	require.NoError(t, err)

	results := decodeResults(t, out)
	require.Len(t, results, 2)
	assert.Empty(t, results["ok"].Err)
	assert.NotEmpty(t, results["empty"].Err)
	assert.Contains(t, errOut, "1 reads failed")
}

func TestReplay_KeepSignalAndTop(t *testing.T) {
	t.Parallel()

	input := recordLine(t, readio.Record{ID: "a", Samples: wave(500), Seeds: exampleSeeds(t)})

	out, _, err := execute(t, input, "replay", "--keep-signal", "--top", "1", "--no-summary")
	require.NoError(t, err)

	res := decodeResults(t, out)["a"]
	assert.Len(t, res.Alignments, 1)
	assert.NotEmpty(t, res.Normalized)
}

func TestReplay_ValidateRejectsBadRecord(t *testing.T) {
	t.Parallel()

	input := `{"id":"x","samples":[1,2],"extra":true}` + "\n"

	_, _, err := execute(t, input, "replay", "--validate", "--no-summary")
	require.ErrorIs(t, err, readio.ErrSchemaViolation)
}

func TestReplay_InvalidChunkSize(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "", "replay", "--chunk-size", "0")
	require.ErrorIs(t, err, config.ErrInvalidChunkSize)
}

func TestReplay_MetricsServer(t *testing.T) {
	t.Parallel()

	input := recordLine(t, readio.Record{ID: "a", Samples: wave(400), Seeds: exampleSeeds(t)})

	out, errOut, err := execute(t, input, "replay", "--metrics-addr", "127.0.0.1:0", "--no-color")
	require.NoError(t, err)
	assert.Len(t, decodeResults(t, out), 1)
	assert.Contains(t, errOut, "serving metrics")
}
