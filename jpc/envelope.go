package jpc

import (
	"bytes"
	"encoding/json"
)

const (
	// Version is the protocol version stamped on every outbound envelope.
	Version = "1.0"
	// UnknownID answers requests whose id could not be read.
	UnknownID = "0"
)

// QInfo is the content addressing metadata propagated through a request.
type QInfo struct {
	ID         string `json:"id,omitempty"`
	Hash       string `json:"hash"`
	WriteToken string `json:"write_token"`
	QLibID     string `json:"qlib_id"`
	QType      string `json:"qtype"`
}

// HTTPParams is the "http" member of request params.
type HTTPParams struct {
	Path    string              `json:"path"`
	Verb    string              `json:"verb,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
	Query   json.RawMessage     `json:"query,omitempty"`
}

// Request is an inbound envelope after validation.
type Request struct {
	JPC    string
	ID     string
	Path   string
	Method string // route segment resolved from Path
	Params json.RawMessage
	QInfo  QInfo
}

// Param returns the raw member name of the request params.
func (r *Request) Param(name string) (json.RawMessage, bool) {
	if r == nil || len(r.Params) == 0 {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(r.Params, &m); err != nil {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// HTTP decodes the "http" member of the request params.
func (r *Request) HTTP() (HTTPParams, bool) {
	var p HTTPParams
	raw, ok := r.Param("http")
	if !ok {
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false
	}
	return p, true
}

// Envelope is an inbound request document as the host sends it.
type Envelope struct {
	JPC    string          `json:"jpc"`
	ID     string          `json:"id"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params"`
	QInfo  QInfo           `json:"qinfo"`
}

// Call is the outbound envelope of a nested host call.
type Call struct {
	JPC    string          `json:"jpc"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
	Module string          `json:"module"`
	Method string          `json:"method"`
}

// NewCall returns a call envelope. Empty params are sent as {}.
func NewCall(id, module, method string, params json.RawMessage) Call {
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}
	return Call{JPC: Version, ID: id, Params: params, Module: module, Method: method}
}

// Response is a terminal envelope. Exactly one of Result and Error is set.
type Response struct {
	JPC    string          `json:"jpc"`
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Respond encodes r as the terminal envelope for request id. A success
// payload that is not JSON is sent as a JSON string; an empty one as null.
func Respond(id string, r Result) []byte {
	if r.IsError() {
		return ErrorResponse(id, r.Err)
	}
	payload := bytes.TrimSpace(r.Payload)
	switch {
	case len(payload) == 0:
		payload = []byte("null")
	case !json.Valid(payload):
		payload, _ = json.Marshal(string(r.Payload))
	}
	return encodeResponse(Response{JPC: Version, ID: id, Result: payload})
}

// ErrorResponse encodes err as the terminal error envelope for request id.
func ErrorResponse(id string, err *Error) []byte {
	if err == nil {
		err = E("unknown", KindOther)
	}
	return encodeResponse(Response{JPC: Version, ID: id, Error: err.ObjectJSON()})
}

func encodeResponse(resp Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"jpc":"1.0","id":"0","error":{"op":"encode response","kind":"invalid"}}`)
	}
	return b
}
