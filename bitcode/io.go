package bitcode

import (
	"io"
)

// StreamReader reads a host stream. An empty chunk from the host ends the
// stream.
type StreamReader struct {
	c  *Context
	id string
}

func (c *Context) StreamReader(id string) *StreamReader {
	return &StreamReader{c: c, id: id}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	res := r.c.ReadStream(r.id, len(p))
	if res.IsError() {
		r.c.Logf("error reading stream %s: %v", r.id, res.Err)
		return 0, res.Err
	}
	if len(res.Payload) == 0 {
		return 0, io.EOF
	}
	return copy(p, res.Payload), nil
}

// StreamWriter writes to a host stream and counts the bytes the host
// reports as written.
type StreamWriter struct {
	c       *Context
	id      string
	written int64
}

func (c *Context) StreamWriter(id string) *StreamWriter {
	return &StreamWriter{c: c, id: id}
}

func (w *StreamWriter) Write(p []byte) (int, error) {
	res := w.c.WriteStream(w.id, p, -1)
	if res.IsError() {
		return 0, res.Err
	}
	n, ok := writtenCount(res)
	if !ok || n > len(p) {
		n = len(p)
	}
	w.written += int64(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Written returns the total bytes written so far.
func (w *StreamWriter) Written() int64 { return w.written }
