package readio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

// Sentinel errors.
var (
	// ErrMalformedSample is returned for a sample token that is not a number.
	ErrMalformedSample = errors.New("malformed sample")
	// ErrMalformedHit is returned for a hit line that cannot be parsed.
	ErrMalformedHit = errors.New("malformed seed hit")
)

// maxLineSize bounds a single input line.
const maxLineSize = 16 << 20

// Hit columns: ref_start ref_end evt_start evt_end length [strand].
const (
	hitColumns       = 5
	hitColumnsStrand = 6
)

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	return sc
}

// skipLine reports blank and '#' comment lines.
func skipLine(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}

// ReadSamples parses raw signal samples separated by whitespace or commas.
func ReadSamples(r io.Reader) ([]float64, error) {
	sc := newScanner(r)

	var (
		samples []float64
		lineNo  int
	)

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if skipLine(line) {
			continue
		}

		fields := strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t'
		})

		for _, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedSample, lineNo, field)
			}

			samples = append(samples, value)
		}
	}

	err := sc.Err()
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}

	return samples, nil
}

// ReadHits parses tab or space separated seed hits, one per line.
func ReadHits(r io.Reader) ([]seedtracker.Hit, error) {
	sc := newScanner(r)

	var (
		hits   []seedtracker.Hit
		lineNo int
	)

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if skipLine(line) {
			continue
		}

		hit, err := ParseHit(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		hits = append(hits, hit)
	}

	err := sc.Err()
	if err != nil {
		return nil, fmt.Errorf("read hits: %w", err)
	}

	return hits, nil
}

// ParseHit parses one "ref_start ref_end evt_start evt_end length [strand]" line.
func ParseHit(line string) (seedtracker.Hit, error) {
	fields := strings.Fields(line)
	if len(fields) != hitColumns && len(fields) != hitColumnsStrand {
		return seedtracker.Hit{}, fmt.Errorf("%w: want %d or %d columns, got %d",
			ErrMalformedHit, hitColumns, hitColumnsStrand, len(fields))
	}

	var values [hitColumns]int

	for i := range values {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return seedtracker.Hit{}, fmt.Errorf("%w: column %d: %q", ErrMalformedHit, i+1, fields[i])
		}

		values[i] = v
	}

	hit := seedtracker.Hit{
		RefStart: values[0],
		RefEnd:   values[1],
		EvtStart: values[2],
		EvtEnd:   values[3],
		Length:   values[4],
	}

	if hit.RefEnd < hit.RefStart || hit.EvtEnd < hit.EvtStart || hit.Length < 0 {
		return seedtracker.Hit{}, fmt.Errorf("%w: reversed interval or negative length", ErrMalformedHit)
	}

	if len(fields) == hitColumnsStrand {
		strand, err := seedtracker.ParseStrand(fields[5])
		if err != nil {
			return seedtracker.Hit{}, fmt.Errorf("%w: %w", ErrMalformedHit, err)
		}

		hit.Strand = strand
	}

	return hit, nil
}
