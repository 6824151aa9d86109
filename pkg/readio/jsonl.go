package readio

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"syscall"
)

const (
	defaultQueueSize  = 64
	writerBufferBytes = 64 << 10
)

var writerPool = sync.Pool{
	New: func() any {
		return bufio.NewWriterSize(io.Discard, writerBufferBytes)
	},
}

// IsBrokenPipe reports whether err means the reader of our output went away.
func IsBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}

// StartJSONL starts a goroutine that writes every value sent on the returned
// channel to out as one JSON line. Close the channel to flush; the error channel
// then yields exactly one value. After a write error the remaining values are
// drained and dropped so senders never block. Broken pipes are not reported.
func StartJSONL[T any](out io.Writer, queueSize int) (chan<- T, <-chan error) {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	in := make(chan T, queueSize)
	done := make(chan error, 1)

	go func() {
		bw, _ := writerPool.Get().(*bufio.Writer)
		bw.Reset(out)

		defer func() {
			bw.Reset(io.Discard)
			writerPool.Put(bw)
		}()

		enc := json.NewEncoder(bw)

		var err error

		for v := range in {
			if err != nil {
				continue
			}

			err = enc.Encode(v)
		}

		if err == nil {
			err = bw.Flush()
		}

		if IsBrokenPipe(err) {
			err = nil
		}

		done <- err
	}()

	return in, done
}
