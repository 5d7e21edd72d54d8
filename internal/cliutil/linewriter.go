// Package cliutil holds small helpers shared by the spawn commands.
package cliutil

import (
	"bytes"
	"fmt"
	"io"
)

// LineWriter re-chunks raw subprocess output into whole lines and writes each
// one with a fixed prefix. Pipe reads arrive at arbitrary boundaries, so bytes
// after the last newline are held back until the next write or Flush.
type LineWriter struct {
	out    io.Writer
	prefix string
	buf    []byte
}

// NewLineWriter returns a writer that emits prefixed lines to out. An empty
// prefix passes lines through unadorned.
func NewLineWriter(out io.Writer, prefix string) *LineWriter {
	return &LineWriter{out: out, prefix: prefix}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			return len(p), nil
		}
		if err := w.emit(w.buf[:i]); err != nil {
			return len(p), err
		}
		w.buf = w.buf[i+1:]
	}
}

// Flush writes any held partial line, terminating it with a newline.
func (w *LineWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	err := w.emit(w.buf)
	w.buf = w.buf[:0]
	return err
}

func (w *LineWriter) emit(line []byte) error {
	_, err := fmt.Fprintf(w.out, "%s%s\n", w.prefix, line)
	return err
}
