package bitcode

import (
	"strconv"

	"github.com/caffeineduck/jpcguest/jpc"
)

// QDownloadFile reads the content file at path of hashOrToken through a
// fresh stream. Any failure after the stream is opened closes it first.
func (c *Context) QDownloadFile(path, hashOrToken string) jpc.Result {
	const op = "QDownloadFile"
	sid := c.NewStream()
	if sid == "" {
		return jpc.FromError(jpc.E(op, jpc.KindIO, jpc.FieldDesc, "unable to find stream_id", "path", path))
	}
	fail := c.failClosing(op, sid, "path", path, "hash_or_token", hashOrToken)

	r := c.QFileToStream(sid, path, hashOrToken)
	if r.IsError() {
		return fail(r.Err, jpc.FieldDesc, "QFileToStream failed")
	}
	written, ok := writtenCount(r)
	if !ok {
		return fail(jpc.E("QFileToStream", jpc.KindInvalid), jpc.FieldDesc, "written not returned")
	}
	if written == 0 {
		return fail(jpc.E("QFileToStream", jpc.KindNotExist), jpc.FieldDesc, "wrote 0 bytes")
	}
	r = c.ReadStream(sid, written)
	if r.IsError() {
		return fail(r.Err, jpc.FieldDesc, "ReadStream failed")
	}
	return r
}

// failClosing returns a failure constructor for op that closes stream sid
// before reporting. A failing close is recorded under "close_error".
func (c *Context) failClosing(op, sid string, kv ...string) func(cause *jpc.Error, more ...string) jpc.Result {
	return func(cause *jpc.Error, more ...string) jpc.Result {
		fields := append([]string{"stream_id", sid}, kv...)
		e := jpc.Wrap(op, cause, append(fields, more...)...)
		if cr := c.CloseStream(sid); cr.IsError() {
			e.SetJSON("close_error", cr.Err.ObjectJSON())
		}
		return jpc.FromError(e)
	}
}

// QUploadToFile writes data to a stream and stores it as the content file
// path of write token qwt with the given mime type.
func (c *Context) QUploadToFile(qwt string, data []byte, path, mime string) jpc.Result {
	const op = "QUploadToFile"
	sid := c.NewStream()
	if sid == "" {
		return jpc.FromError(jpc.E(op, jpc.KindIO, jpc.FieldDesc, "unable to find stream_id", "path", path))
	}
	defer func() {
		if r := c.CloseStream(sid); r.IsError() {
			c.Logf("%s: close stream %s: %v", op, sid, r.Err)
		}
	}()

	r := c.WriteStream(sid, data, -1)
	if r.IsError() {
		return jpc.FromError(jpc.Wrap(op, r.Err, "stream_id", sid, jpc.FieldDesc, "WriteStream failed"))
	}
	size, ok := writtenCount(r)
	if !ok {
		size = len(data)
	}
	r = c.QCreateFileFromStream(sid, qwt, path, mime, int64(size))
	if r.IsError() {
		return jpc.FromError(jpc.Wrap(op, r.Err, "stream_id", sid, "path", path, "size", strconv.Itoa(size)))
	}
	return r
}
