package pkg

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
)

var _ io.Writer = (*CombinedWriter)(nil)

// CombinedWriter writes every message to each of its writers, e.g. stdout
// and the rotating log file.
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		Writers: append([]io.Writer{}, writers...),
	}
}

// Write always offers p to all writers. It reports len(p) when every writer
// took the whole message; otherwise the failures are combined into err and n
// is the smallest count written.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	n := len(p)
	var err error
	for i, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr == nil && written < len(p) {
			werr = io.ErrShortWrite
		}
		if werr != nil {
			err = multierr.Append(err, fmt.Errorf("writer %d: %w", i, werr))
		}
		n = min(n, written)
	}
	return n, err
}
