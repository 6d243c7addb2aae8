// Package bitcode implements the per-request context a guest handler works
// with. Every operation is built on a single synchronous host call.
package bitcode

import (
	"errors"
	"fmt"
)

// Host bindings.
const (
	BindingCtx  = "ctx"  // streams, callback, logging
	BindingCore = "core" // content and metadata
	BindingExt  = "ext"  // external side effects
	BindingLRO  = "lro"  // long running operations
)

// OutputStream is the stream a handler writes its response body to.
const OutputStream = "fos"

// HostCall invokes operation method on binding with payload on behalf of
// request id and returns the host's reply.
type HostCall func(id, binding, method string, payload []byte) ([]byte, error)

// LogFunc is a fire-and-forget log sink.
type LogFunc func(msg string)

// AbortFunc reports an unrecoverable fault to the host.
type AbortFunc func(msg, source string, line, column uint32)

// Host bundles the primitives the guest consumes from its host.
type Host struct {
	Call  HostCall
	Log   LogFunc
	Abort AbortFunc
}

var errNoBridge = errors.New("no host bridge")

// WithDefaults fills unset primitives. A missing Call fails every call, a
// missing Log drops messages and a missing Abort logs the fault.
func (h Host) WithDefaults() Host {
	if h.Call == nil {
		h.Call = func(string, string, string, []byte) ([]byte, error) {
			return nil, errNoBridge
		}
	}
	if h.Log == nil {
		h.Log = func(string) {}
	}
	if h.Abort == nil {
		log := h.Log
		h.Abort = func(msg, source string, line, column uint32) {
			log(fmt.Sprintf("abort: %s at %s:%d:%d", msg, source, line, column))
		}
	}
	return h
}
