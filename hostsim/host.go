// Package hostsim provides an in-process host for guest code. It answers
// host calls from registered responders or a TOML script, records every
// call and can emulate streams in memory.
package hostsim

import (
	"encoding/json"
	"sync"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/caffeineduck/jpcguest/jpc"
)

// Any matches every binding when used as the binding of a responder.
const Any = "*"

// Call is one recorded host call.
type Call struct {
	ID      string
	Binding string
	Method  string
	Payload []byte
}

// Params returns the params member of a call envelope, or nil when the
// payload is not an envelope.
func (c Call) Params() json.RawMessage {
	var env struct {
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(c.Payload, &env); err != nil {
		return nil
	}
	return env.Params
}

// Responder answers a host call.
type Responder func(Call) ([]byte, error)

// Abort is one recorded abort signal.
type Abort struct {
	Message string
	Source  string
	Line    uint32
	Column  uint32
}

type route struct {
	binding string
	method  string
}

// Host is a scripted host. It is safe for concurrent use.
type Host struct {
	mu       sync.Mutex
	handlers map[route]Responder
	calls    []Call
	logs     []string
	aborts   []Abort

	streams *streamTable
	files   map[string][]byte
	state   *stateStore
}

// Option configures a Host.
type Option func(*Host)

// WithStreams emulates the ctx stream operations, stream reads and writes,
// and the core file operations that move data between files and streams.
func WithStreams() Option {
	return func(h *Host) {
		if h.streams == nil {
			h.streams = newStreamTable()
		}
	}
}

// WithFile seeds a content file served by QFileToStream. It implies
// WithStreams.
func WithFile(path string, data []byte) Option {
	return func(h *Host) {
		WithStreams()(h)
		h.files[path] = append([]byte(nil), data...)
	}
}

func New(opts ...Option) *Host {
	h := &Host{
		handlers: make(map[route]Responder),
		files:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle registers fn for method on binding. Binding Any matches every
// binding without an exact responder. Registering again replaces fn.
func (h *Host) Handle(binding, method string, fn Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[route{binding, method}] = fn
}

// Result answers method on binding with {"result": v}.
func (h *Host) Result(binding, method string, v any) {
	b, err := json.Marshal(map[string]any{"result": v})
	h.Handle(binding, method, func(Call) ([]byte, error) { return b, err })
}

// Error answers method on binding with {"error": v}.
func (h *Host) Error(binding, method string, v any) {
	b, err := json.Marshal(map[string]any{"error": v})
	h.Handle(binding, method, func(Call) ([]byte, error) { return b, err })
}

// Raw answers method on binding with raw bytes.
func (h *Host) Raw(binding, method string, raw []byte) {
	b := append([]byte(nil), raw...)
	h.Handle(binding, method, func(Call) ([]byte, error) { return b, nil })
}

// Call records the call and answers it. Unanswered calls reply with a
// "not implemented" error document.
func (h *Host) Call(id, binding, method string, payload []byte) ([]byte, error) {
	c := Call{ID: id, Binding: binding, Method: method, Payload: append([]byte(nil), payload...)}

	h.mu.Lock()
	h.calls = append(h.calls, c)
	fn, ok := h.handlers[route{binding, method}]
	if !ok {
		fn, ok = h.handlers[route{Any, method}]
	}
	h.mu.Unlock()

	if ok {
		return fn(c)
	}
	if out, handled := h.emulate(c); handled {
		return out, nil
	}
	if out, handled := h.emulateState(c); handled {
		return out, nil
	}
	return notImplemented(binding, method), nil
}

func notImplemented(binding, method string) []byte {
	return errorObject(jpc.E(method, jpc.KindNotImplemented, "binding", binding))
}

func (h *Host) Log(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, msg)
}

func (h *Host) Abort(msg, source string, line, column uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aborts = append(h.aborts, Abort{Message: msg, Source: source, Line: line, Column: column})
}

// Bridge returns the host primitives backed by h.
func (h *Host) Bridge() bitcode.Host {
	return bitcode.Host{Call: h.Call, Log: h.Log, Abort: h.Abort}
}

func (h *Host) Logs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.logs...)
}

func (h *Host) Aborts() []Abort {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Abort(nil), h.aborts...)
}

// Calls returns every recorded call in order.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// CallsTo returns the recorded calls of method on binding. Binding Any
// matches every binding.
func (h *Host) CallsTo(binding, method string) []Call {
	var out []Call
	for _, c := range h.Calls() {
		if c.Method == method && (binding == Any || c.Binding == binding) {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls, logs and aborts. Responders, streams and
// files are kept.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
	h.logs = nil
	h.aborts = nil
}
