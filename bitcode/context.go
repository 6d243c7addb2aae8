package bitcode

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caffeineduck/jpcguest/jpc"
)

// Context is the state of one inbound request. It is created by the
// dispatcher before the handler runs and cleaned up after it returns.
// A Context is not safe for concurrent use.
type Context struct {
	host    Host
	req     *jpc.Request
	payload []byte

	open   []string
	closed map[string]bool
}

// New returns a Context for req. payload is the raw inbound document.
func New(host Host, req *jpc.Request, payload []byte) *Context {
	if req == nil {
		req = &jpc.Request{ID: jpc.UnknownID}
	}
	return &Context{
		host:    host.WithDefaults(),
		req:     req,
		payload: payload,
		closed:  make(map[string]bool),
	}
}

func (c *Context) ID() string              { return c.req.ID }
func (c *Context) Method() string          { return c.req.Method }
func (c *Context) Request() *jpc.Request   { return c.req }
func (c *Context) Payload() []byte         { return c.payload }
func (c *Context) Params() json.RawMessage { return c.req.Params }
func (c *Context) Hash() string            { return c.req.QInfo.Hash }
func (c *Context) WriteToken() string      { return c.req.QInfo.WriteToken }
func (c *Context) QLibID() string          { return c.req.QInfo.QLibID }
func (c *Context) QType() string           { return c.req.QInfo.QType }
func (c *Context) QID() string             { return c.req.QInfo.ID }

// OpenStreams returns the ids of streams opened and not yet closed, in
// creation order.
func (c *Context) OpenStreams() []string {
	out := make([]string, len(c.open))
	copy(out, c.open)
	return out
}

// Logf writes to the host console.
func (c *Context) Logf(format string, args ...any) {
	c.host.Log(fmt.Sprintf(format, args...))
}

// Abort forwards a fault to the host unchanged.
func (c *Context) Abort(msg, source string, line, column uint32) {
	c.host.Abort(msg, source, line, column)
}

// Call invokes method on binding with params wrapped in a call envelope.
// params may be a json.RawMessage or []byte holding encoded JSON, nil for
// an empty object, or any value json.Marshal accepts.
//
// The reply is interpreted three ways: a non-object is a bare success
// ("SUCCESS"), a "result" member is the success payload, an "error" member
// is a classified failure. An object with neither is returned as is.
func (c *Context) Call(method string, params any, binding string) jpc.Result {
	raw, err := encodeParams(params)
	if err != nil {
		return jpc.FromError(jpc.E(method, jpc.KindInvalid, "binding", binding, jpc.FieldDesc, err.Error()))
	}
	msg, err := json.Marshal(jpc.NewCall(c.req.ID, binding, method, raw))
	if err != nil {
		return jpc.FromError(jpc.E(method, jpc.KindInvalid, "binding", binding, jpc.FieldDesc, err.Error()))
	}
	reply, jerr := c.bridge(binding, method, msg)
	if jerr != nil {
		return jpc.FromError(jerr)
	}
	return interpret(reply)
}

// bridge performs a host call without envelope handling.
func (c *Context) bridge(binding, method string, payload []byte) ([]byte, *jpc.Error) {
	reply, err := c.host.Call(c.req.ID, binding, method, payload)
	if err != nil {
		return nil, jpc.E("host call", jpc.KindIO, "binding", binding, "method", method, jpc.FieldDesc, err.Error())
	}
	return reply, nil
}

func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	default:
		return json.Marshal(p)
	}
}

func interpret(reply []byte) jpc.Result {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(reply, &doc); err != nil || doc == nil {
		return jpc.Success([]byte("SUCCESS"))
	}
	if res, ok := doc["result"]; ok {
		return jpc.Success(res)
	}
	if res, ok := doc["error"]; ok {
		return jpc.Failure(res, jpc.ParseError(res))
	}
	return jpc.Success(reply)
}

func (c *Context) track(id string) {
	c.open = append(c.open, id)
	delete(c.closed, id)
}

func (c *Context) untrack(id string) {
	for i, s := range c.open {
		if s == id {
			c.open = append(c.open[:i], c.open[i+1:]...)
			break
		}
	}
	c.closed[id] = true
}

// Cleanup closes every stream still open. It attempts all of them and
// returns the joined failures.
func (c *Context) Cleanup() error {
	var errs []error
	for _, id := range c.OpenStreams() {
		if r := c.CloseStream(id); r.IsError() {
			errs = append(errs, fmt.Errorf("close stream %s: %w", id, r.Err))
		}
	}
	return errors.Join(errs...)
}
