package readio

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

// ErrSchemaViolation is returned when a record does not match the record schema.
var ErrSchemaViolation = errors.New("record violates schema")

//go:embed record.schema.json
var recordSchema []byte

// RecordSchema returns the JSON schema read records are validated against.
func RecordSchema() []byte {
	return bytes.Clone(recordSchema)
}

// Record is one read: its raw signal and the seed hits found for it.
type Record struct {
	ID      string            `json:"id"`
	Samples []float64         `json:"samples"`
	Seeds   []seedtracker.Hit `json:"seeds,omitempty"`
}

// RecordReader decodes JSONL read records.
type RecordReader struct {
	r      *bufio.Reader
	schema *gojsonschema.Schema
	line   int
}

// NewRecordReader reads records from r. With validate set every record is
// checked against RecordSchema before decoding.
func NewRecordReader(r io.Reader, validate bool) (*RecordReader, error) {
	rr := &RecordReader{r: bufio.NewReaderSize(r, 1<<20)}

	if validate {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(recordSchema))
		if err != nil {
			return nil, fmt.Errorf("compile record schema: %w", err)
		}

		rr.schema = schema
	}

	return rr, nil
}

// Next returns the next record, or io.EOF after the last one.
// Records without an id are assigned a random UUID.
func (rr *RecordReader) Next() (Record, error) {
	for {
		raw, err := rr.r.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}

			return Record{}, fmt.Errorf("read record: %w", err)
		}

		rr.line++

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		return rr.decode(raw)
	}
}

func (rr *RecordReader) decode(raw []byte) (Record, error) {
	if rr.schema != nil {
		err := rr.validate(raw)
		if err != nil {
			return Record{}, err
		}
	}

	var rec Record

	err := json.Unmarshal(raw, &rec)
	if err != nil {
		return Record{}, fmt.Errorf("decode record on line %d: %w", rr.line, err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	return rec, nil
}

func (rr *RecordReader) validate(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any

	err := dec.Decode(&doc)
	if err != nil {
		return fmt.Errorf("decode record on line %d: %w", rr.line, err)
	}

	result, err := rr.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate record on line %d: %w", rr.line, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, verr.String())
	}

	return fmt.Errorf("%w: line %d: %s", ErrSchemaViolation, rr.line, strings.Join(problems, "; "))
}

// ReadRecords decodes every record in r.
func ReadRecords(r io.Reader, validate bool) ([]Record, error) {
	rr, err := NewRecordReader(r, validate)
	if err != nil {
		return nil, err
	}

	var out []Record

	for {
		rec, nextErr := rr.Next()
		if errors.Is(nextErr, io.EOF) {
			return out, nil
		}

		if nextErr != nil {
			return nil, nextErr
		}

		out = append(out, rec)
	}
}
