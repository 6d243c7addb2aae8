package dispatch

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/caffeineduck/jpcguest/jpc"
)

// Op names errors raised while parsing and routing a request.
const Op = "dispatch"

// Rejection messages.
const (
	MsgMalformed    = "unable to parse payload"
	MsgNoID         = "ID not found"
	MsgNoParams     = "params not found"
	MsgNoHTTP       = "http params not found"
	MsgNoMethod     = "no method provided"
	MsgNoQInfo      = "qinfo not provided"
	MsgNoHandlerFor = "method handler not found for: "
)

func reject(kind jpc.Kind, msg string) *jpc.Error {
	return jpc.E(Op, kind, jpc.FieldDesc, msg)
}

// Parse validates an inbound envelope. The returned request is never nil;
// its ID is jpc.UnknownID until the id has been read, so a rejection can
// always be answered.
func Parse(raw []byte) (*jpc.Request, *jpc.Error) {
	req := &jpc.Request{ID: jpc.UnknownID}
	if !utf8.Valid(raw) {
		return req, reject(jpc.KindInvalid, MsgMalformed)
	}
	doc, ok := object(raw)
	if !ok {
		return req, reject(jpc.KindInvalid, MsgMalformed)
	}
	req.JPC = lenientString(doc["jpc"])

	// Only a string id counts; a number or object is treated as absent.
	var id *string
	if err := json.Unmarshal(doc["id"], &id); err != nil || id == nil {
		return req, reject(jpc.KindInvalid, MsgNoID)
	}
	req.ID = *id

	params, ok := object(doc["params"])
	if !ok {
		return req, reject(jpc.KindInvalid, MsgNoParams)
	}
	req.Params = doc["params"]

	http, ok := object(params["http"])
	if !ok {
		return req, reject(jpc.KindBadHTTPParams, MsgNoHTTP)
	}
	// An empty path is routable; it resolves to the "" handler.
	var path *string
	if err := json.Unmarshal(http["path"], &path); err != nil || path == nil {
		return req, reject(jpc.KindBadHTTPParams, MsgNoMethod)
	}
	req.Path = *path
	req.Method = Route(*path)

	qinfo, ok := object(doc["qinfo"])
	if !ok {
		return req, reject(jpc.KindInvalid, MsgNoQInfo)
	}
	req.QInfo = jpc.QInfo{
		ID:         lenientString(qinfo["id"]),
		Hash:       lenientString(qinfo["hash"]),
		WriteToken: lenientString(qinfo["write_token"]),
		QLibID:     lenientString(qinfo["qlib_id"]),
		QType:      lenientString(qinfo["qtype"]),
	}
	return req, nil
}

// Route resolves the operation name of path: the second "/" separated
// segment when there is more than one, else the first. "/op" and "op"
// both route to "op"; "/ns/op" routes to "ns" and "a/b/c" to "b".
func Route(path string) string {
	segs := strings.Split(path, "/")
	if len(segs) > 1 {
		return segs[1]
	}
	return segs[0]
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// lenientString reads a string member. Absent and null members are "";
// other values keep their JSON text.
func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == nil {
			return ""
		}
		return *s
	}
	return strings.TrimSpace(string(raw))
}
