package readio_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
)

type line struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func TestStartJSONL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	in, done := readio.StartJSONL[line](&buf, 0)

	for i := range 100 {
		in <- line{ID: "r", Value: i}
	}

	close(in)
	require.NoError(t, <-done)

	sc := bufio.NewScanner(&buf)

	var count int

	for sc.Scan() {
		var got line

		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		assert.Equal(t, count, got.Value)

		count++
	}

	assert.Equal(t, 100, count)
}

type failingWriter struct {
	err error
}

func (w failingWriter) Write([]byte) (int, error) {
	return 0, w.err
}

func TestStartJSONL_ReportsWriteErrorsAndDrains(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	in, done := readio.StartJSONL[line](failingWriter{err: boom}, 1)

	// Far more values than fit in the queue or the write buffer.
	for i := range 10_000 {
		in <- line{ID: "padding-padding-padding-padding", Value: i}
	}

	close(in)

	require.ErrorIs(t, <-done, boom)
}

func TestStartJSONL_SuppressesBrokenPipe(t *testing.T) {
	t.Parallel()

	in, done := readio.StartJSONL[line](failingWriter{err: syscall.EPIPE}, 1)
	in <- line{ID: "x"}
	close(in)

	assert.NoError(t, <-done)
}

func TestIsBrokenPipe(t *testing.T) {
	t.Parallel()

	assert.True(t, readio.IsBrokenPipe(io.ErrClosedPipe))
	assert.True(t, readio.IsBrokenPipe(syscall.EPIPE))
	assert.False(t, readio.IsBrokenPipe(nil))
	assert.False(t, readio.IsBrokenPipe(io.EOF))
}
