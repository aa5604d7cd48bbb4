package logging

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LineWriter prefixes every complete line written to it with a sequence number and a
// timestamp before passing it to the target. A trailing partial line is held until the next
// newline or Close.
type LineWriter struct {
	mu     sync.Mutex
	target io.Writer
	seq    atomic.Uint64
	buf    bytes.Buffer
	now    func() time.Time
}

func NewLineWriter(target io.Writer) *LineWriter {
	return &LineWriter{target: target, now: time.Now}
}

// Write reports len(p) on success so callers such as slog handlers see a full write.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := w.buf.Next(idx + 1)
		if err := w.writeLine(bytes.TrimRight(line, "\r\n")); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *LineWriter) writeLine(line []byte) error {
	prefix := slog.Uint64("line", w.seq.Add(1)).String() + " " +
		slog.String("time", w.now().Format(time.RFC3339)).String() + " "

	out := make([]byte, 0, len(prefix)+len(line)+1)
	out = append(out, prefix...)
	out = append(out, line...)
	out = append(out, '\n')
	_, err := w.target.Write(out)
	return err
}

// Close flushes a trailing partial line.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	rest := bytes.Clone(w.buf.Bytes())
	w.buf.Reset()
	return w.writeLine(rest)
}
