package bitcode

import (
	"encoding/json"
	"strings"

	"github.com/caffeineduck/jpcguest/jpc"
)

// QFileToStream copies the content file at path of hashOrToken into stream.
// The result carries {"written": n}.
func (c *Context) QFileToStream(stream, path, hashOrToken string) jpc.Result {
	return c.Call("QFileToStream", map[string]string{
		"stream_id":     stream,
		"path":          path,
		"hash_or_token": hashOrToken,
	}, BindingCore)
}

// QCreateFileFromStream stores the contents of stream as a content file.
// An empty qwt uses the request's write token.
func (c *Context) QCreateFileFromStream(stream, qwt, path, mime string, size int64) jpc.Result {
	if qwt == "" {
		qwt = c.WriteToken()
	}
	return c.Call("QCreateFileFromStream", map[string]any{
		"stream_id": stream,
		"qwtoken":   qwt,
		"path":      path,
		"mime":      mime,
		"size":      size,
	}, BindingCore)
}

// QCreatePartFromStream stores the contents of stream as a new part of
// write token qwt. The result carries the part hash and size.
func (c *Context) QCreatePartFromStream(qwt, stream string) jpc.Result {
	return c.Call("QCreatePartFromStream", map[string]string{"qwtoken": qwt, "stream_id": stream}, BindingCore)
}

// QPartList lists the parts of the content object idOrHash.
func (c *Context) QPartList(idOrHash string) jpc.Result {
	return c.Call("QPartList", map[string]string{"object_id_or_hash": idOrHash}, BindingCore)
}

// WritePartToStream copies length bytes of part qphash starting at offset
// into stream.
func (c *Context) WritePartToStream(stream, qphash, qihot string, offset, length int64) jpc.Result {
	return c.Call("QWritePartToStream", map[string]any{
		"stream_id": stream,
		"off":       offset,
		"len":       length,
		"qphash":    qphash,
		"qihot":     qihot,
	}, BindingCore)
}

// WriteQFileToStream copies the content file at path of content qihot into
// stream.
func (c *Context) WriteQFileToStream(stream, path, qihot string) jpc.Result {
	return c.Call("QFileToStream", map[string]string{"stream_id": stream, "path": path, "qihot": qihot}, BindingCore)
}

// QCheckSumPart computes the hex checksum of part qphash. method is "MD5"
// or "SHA256".
func (c *Context) QCheckSumPart(method, qphash string) jpc.Result {
	return c.Call("QCheckSumPart", map[string]string{"method": method, "qphash": qphash}, BindingCore)
}

// QCheckSumFile computes the hex checksum of the bundle file at path.
func (c *Context) QCheckSumFile(method, path string) jpc.Result {
	return c.Call("QCheckSumFile", map[string]string{"method": method, "file_path": path}, BindingCore)
}

// QCreateContent creates a local content object of type qtype with meta at
// the root. The result carries {"qid", "qwtoken"}.
func (c *Context) QCreateContent(qtype string, meta any) jpc.Result {
	if meta == nil {
		meta = map[string]any{}
	}
	return c.Call("QCreateContent", map[string]any{"qtype": qtype, "meta": meta}, BindingCore)
}

// QModifyContent opens the request's content for editing. The result
// carries {"qwtoken"}.
func (c *Context) QModifyContent() jpc.Result {
	return c.Call("QModifyContent", map[string]any{"meta": map[string]any{}, "qtype": ""}, BindingCore)
}

// QListContent lists the content of the request's library.
func (c *Context) QListContent() jpc.Result {
	return c.Call("QListContent", nil, BindingCore)
}

// QListContentFor lists the content of library qlibid.
func (c *Context) QListContentFor(qlibid string) jpc.Result {
	return c.Call("QListContentFor", map[string]string{"external_lib": qlibid}, BindingCore)
}

// QFinalizeContent finalizes write token qwt.
func (c *Context) QFinalizeContent(qwt string) jpc.Result {
	return c.Call("QFinalizeContent", map[string]string{"qwtoken": qwt}, BindingCore)
}

// QCommitContent publishes the finalized hash qhash. Nodes serve commits
// through the finalize operation keyed by qhash.
func (c *Context) QCommitContent(qhash string) jpc.Result {
	return c.Call("QFinalizeContent", map[string]string{"qhash": qhash}, BindingCore)
}

// QGetVersions lists the versions of qid in the request's library.
func (c *Context) QGetVersions(qid string, withDetails bool) jpc.Result {
	return c.Call("QGetVersions", map[string]any{"qid": qid, "with_details": withDetails}, BindingCore)
}

func (c *Context) SystemTime() jpc.Result {
	return c.Call("SystemTime", nil, BindingCore)
}

// SQMDGet reads content metadata at path.
func (c *Context) SQMDGet(path string) jpc.Result {
	return c.Call("SQMDGet", map[string]string{"path": path}, BindingCore)
}

// SQMDGetExternal reads metadata at path of content qhash in library
// qlibid.
func (c *Context) SQMDGetExternal(qlibid, qhash, path string) jpc.Result {
	return c.Call("SQMDGetExternal", map[string]string{"path": path, "qlibid": qlibid, "qhash": qhash}, BindingCore)
}

// SQMDGetResolve reads content metadata at path resolving links.
func (c *Context) SQMDGetResolve(path string) jpc.Result {
	return c.Call("SQMDGetJSONResolve", map[string]string{"path": path}, BindingCore)
}

// SQMDSet replaces the metadata at path with meta.
func (c *Context) SQMDSet(path string, meta any) jpc.Result {
	raw, err := encodeParams(meta)
	if err != nil {
		return jpc.Fail("SQMDSet", jpc.FieldKind, string(jpc.KindInvalid), "path", path, jpc.FieldDesc, err.Error())
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return c.Call("SQMDSet", map[string]any{"meta": raw, "path": path}, BindingCore)
}

// SQMDMerge merges the encoded JSON document meta into the metadata at path.
func (c *Context) SQMDMerge(path, meta string) jpc.Result {
	return c.Call("SQMDMerge", map[string]string{"meta": meta, "path": path}, BindingCore)
}

func (c *Context) SQMDDelete(path string) jpc.Result {
	return c.Call("SQMDDelete", map[string]string{"path": path}, BindingCore)
}

func (c *Context) SQMDClear(path string) jpc.Result {
	return c.Call("SQMDClear", map[string]string{"path": path}, BindingCore)
}

// SQMDQuery runs a metadata query.
func (c *Context) SQMDQuery(query string) jpc.Result {
	return c.Call("SQMDQuery", map[string]string{"query": query}, BindingCore)
}

// QCreateStateStore creates a state store. The result is its id.
func (c *Context) QCreateStateStore() jpc.Result {
	return c.Call("QCreateQStateStore", nil, BindingCore)
}

// QSSGet reads key from state store qssid.
func (c *Context) QSSGet(qssid, key string) jpc.Result {
	return c.Call("QSSGet", map[string]string{"qssid": qssid, "key": key}, BindingCore)
}

// QSSSet stores val under key in state store qssid.
func (c *Context) QSSSet(qssid, key, val string) jpc.Result {
	return c.Call("QSSSet", map[string]string{"qssid": qssid, "key": key, "val": val}, BindingCore)
}

func (c *Context) QSSDelete(qssid, key string) jpc.Result {
	return c.Call("QSSDelete", map[string]string{"qssid": qssid, "key": key}, BindingCore)
}

// TempDir returns a host temporary directory, or "" on failure.
func (c *Context) TempDir() string {
	r := c.Call("TempDir", nil, BindingCtx)
	if r.IsError() {
		return ""
	}
	var dir string
	if err := json.Unmarshal(r.Payload, &dir); err == nil {
		return dir
	}
	return strings.TrimSpace(string(r.Payload))
}

// LogInfo writes msg to the host request log.
func (c *Context) LogInfo(msg string) jpc.Result {
	return c.Call("Log", map[string]string{"level": "INFO", "msg": msg}, BindingCtx)
}

func (c *Context) LogError(msg string) jpc.Result {
	return c.Call("Log", map[string]string{"level": "ERROR", "msg": msg}, BindingCtx)
}
