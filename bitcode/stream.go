package bitcode

import (
	"encoding/json"

	"github.com/caffeineduck/jpcguest/jpc"
)

// FileStream is a stream backed by a host file.
type FileStream struct {
	StreamID string `json:"stream_id"`
	FileName string `json:"file_name"`
}

// Valid reports whether both the stream id and the file name were returned.
func (f FileStream) Valid() bool { return f.StreamID != "" && f.FileName != "" }

// WriteResult is the host's answer to a stream write.
type WriteResult struct {
	Written int `json:"written"`
}

// NewStream opens a host stream and tracks it for cleanup. It returns ""
// when the host did not answer with a stream id.
func (c *Context) NewStream() string {
	var s FileStream
	r := c.Call("NewStream", nil, BindingCtx)
	if r.IsError() || r.Decode(&s) != nil || s.StreamID == "" {
		c.Logf("NewStream: failed to get stream_id")
		return ""
	}
	c.track(s.StreamID)
	return s.StreamID
}

// NewFileStream opens a file backed stream. A stream id without a file name
// is still tracked; callers check Valid.
func (c *Context) NewFileStream() FileStream {
	var s FileStream
	r := c.Call("NewFileStream", nil, BindingCtx)
	if r.IsError() || r.Decode(&s) != nil || s.StreamID == "" {
		c.Logf("NewFileStream: failed to get stream_id")
		return FileStream{}
	}
	c.track(s.StreamID)
	if s.FileName == "" {
		c.Logf("NewFileStream: failed to get file_name")
	}
	return s
}

// ReadStream reads up to size bytes from stream id. The stream id is the
// binding of the call.
func (c *Context) ReadStream(id string, size int) jpc.Result {
	if size <= 0 {
		return jpc.Fail("ReadStream", jpc.FieldKind, string(jpc.KindInvalid), "stream_id", id, jpc.FieldDesc, "size must be positive")
	}
	out, err := c.bridge(id, "Read", make([]byte, size))
	if err != nil {
		return jpc.FromError(err)
	}
	if len(out) > size {
		out = out[:size]
	}
	return jpc.Success(out)
}

// WriteStream writes the first n bytes of p to stream id. n of -1 writes
// all of p.
func (c *Context) WriteStream(id string, p []byte, n int) jpc.Result {
	if n < 0 || n > len(p) {
		n = len(p)
	}
	out, err := c.bridge(id, "Write", p[:n])
	if err != nil {
		return jpc.FromError(err)
	}
	return jpc.Success(out)
}

// CloseStream closes stream id. Closing a stream twice only reaches the
// host once.
func (c *Context) CloseStream(id string) jpc.Result {
	if c.closed[id] {
		return jpc.Success([]byte("SUCCESS"))
	}
	c.untrack(id)
	return c.Call("CloseStream", map[string]string{"stream_id": id}, BindingCtx)
}

// FileStreamSize returns the size of a file stream, or -1 when it cannot
// be determined.
func (c *Context) FileStreamSize(fileName string) int64 {
	r := c.Call("FileStreamSize", map[string]string{"file_name": fileName}, BindingCore)
	if r.IsError() {
		return -1
	}
	var size struct {
		FileSize *int64 `json:"file_size"`
	}
	if err := r.Decode(&size); err != nil || size.FileSize == nil {
		return -1
	}
	return *size.FileSize
}

// FileToStream copies a host file into stream.
func (c *Context) FileToStream(fileName, stream string) jpc.Result {
	return c.Call("FileToStream", map[string]string{"stream_id": stream, "path": fileName}, BindingCore)
}

func writtenCount(r jpc.Result) (int, bool) {
	var w struct {
		Written *json.Number `json:"written"`
	}
	if err := r.Decode(&w); err != nil || w.Written == nil {
		return 0, false
	}
	n, err := w.Written.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}
