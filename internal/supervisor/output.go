package supervisor

import (
	"bytes"
	"io"
	"sync"
)

// sharedOutput serialises complete lines from every child onto one writer
type sharedOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *sharedOutput) writeLine(prefix string, line []byte) error {
	buf := make([]byte, 0, len(prefix)+len(line))
	buf = append(buf, prefix...)
	buf = append(buf, line...)

	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.w.Write(buf)
	return err
}

// lineWriter prefixes each line of one child's stdout and stderr with the
// process name. A partial line is held until its newline or Flush.
type lineWriter struct {
	mu      sync.Mutex
	out     *sharedOutput
	prefix  string
	pending []byte
}

func newLineWriter(out *sharedOutput, name string) *lineWriter {
	return &lineWriter{out: out, prefix: "[" + name + "] "}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if err := w.out.writeLine(w.prefix, w.pending[:i+1]); err != nil {
			return len(p), err
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Flush writes a trailing line that never got its newline
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return
	}
	_ = w.out.writeLine(w.prefix, append(w.pending, '\n'))
	w.pending = nil
}
