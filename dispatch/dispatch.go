// Package dispatch turns raw inbound envelopes into handler invocations.
//
// A Dispatcher owns a Registry and the host primitives. For every request it
// validates the envelope, resolves the operation from params.http.path,
// builds a bitcode.Context, runs the handler and closes every stream the
// handler left open. Every path, including malformed input and handler
// panics, answers with a well formed envelope.
//
//	reg := dispatch.NewRegistry()
//	reg.Register("image", func(c *bitcode.Context) jpc.Result {
//	    return c.QDownloadFile("/img.png", c.Hash())
//	})
//	out := dispatch.New(reg, host).Dispatch(payload)
package dispatch

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/caffeineduck/jpcguest/jpc"
)

// Dispatcher routes requests to the handlers of a Registry.
type Dispatcher struct {
	registry *Registry
	host     bitcode.Host
}

// New returns a Dispatcher. A nil registry dispatches to nothing.
func New(registry *Registry, host bitcode.Host) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{registry: registry, host: host.WithDefaults()}
}

// Registry returns the registry handlers are resolved from.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch serves one request and returns the encoded response envelope.
func (d *Dispatcher) Dispatch(raw []byte) []byte {
	req, err := Parse(raw)
	if err != nil {
		d.host.Log(fmt.Sprintf("dispatch: rejected request %s: %s", req.ID, err.Desc()))
		return jpc.ErrorResponse(req.ID, err)
	}

	c := bitcode.New(d.host, req, raw)
	res := d.serve(c)
	d.cleanup(c)
	return jpc.Respond(req.ID, res)
}

// cleanup closes the streams c left open. Failures, panics included, are
// logged and never change the response.
func (d *Dispatcher) cleanup(c *bitcode.Context) {
	defer func() {
		if v := recover(); v != nil {
			d.host.Log(fmt.Sprintf("dispatch: cleanup %s: panic: %v", c.ID(), v))
		}
	}()
	if err := c.Cleanup(); err != nil {
		d.host.Log(fmt.Sprintf("dispatch: cleanup %s: %v", c.ID(), err))
	}
}

func (d *Dispatcher) serve(c *bitcode.Context) jpc.Result {
	fn, ok := d.registry.Lookup(c.Method())
	if !ok {
		return jpc.FromError(reject(jpc.KindNotImplemented, MsgNoHandlerFor+c.Method()))
	}
	d.host.Log(fmt.Sprintf("dispatch: %s id=%s", c.Method(), c.ID()))
	return invoke(fn, c)
}

// invoke runs fn and converts a panic into an abort signal plus an error
// result.
func invoke(fn HandlerFunc, c *bitcode.Context) (res jpc.Result) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		msg := fmt.Sprint(v)
		file, line := panicSite()
		c.Abort(msg, file, uint32(line), 0)
		res = jpc.FromError(jpc.E(c.Method(), jpc.KindOther, jpc.FieldDesc, "handler panicked", "panic", msg))
	}()
	return fn(c)
}

// panicSite returns the first frame outside the runtime above the deferred
// recover.
func panicSite() (string, int) {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			return f.File, f.Line
		}
		if !more {
			return "unknown", 0
		}
	}
}
