// Package jpcguest is a guest-side runtime for JPC bitcode modules: WASM
// modules that answer JSON-RPC style requests from a content fabric node
// and call back into it through a single host-call primitive.
//
// # Overview
//
// A request envelope arrives through the waPC operation "_jpc". The
// dispatcher validates it, resolves the handler from the request path,
// builds a per-request context and runs the handler. Handlers talk to the
// host through the context: streams, content metadata, state store, HTTP
// proxy and callbacks. Streams left open are closed before the response
// is encoded.
//
// # Basic Usage
//
//	reg := dispatch.NewRegistry()
//	reg.Register("content", func(c *bitcode.Context) jpc.Result {
//	    meta := c.SQMDGet("/title")
//	    if meta.IsError() {
//	        return meta
//	    }
//	    return jpc.Success(meta.Payload)
//	})
//	guest.Serve(reg) // tinygo build -target=wasi
//
// # Testing Without a Node
//
//	h := hostsim.New(hostsim.WithStreams())
//	h.Result("core", "SQMDGet", "hello")
//	resp := dispatch.New(reg, h.Bridge()).Dispatch(request)
//
// Compiled modules can be driven from the host side with the [runner]
// package or the jpcguest command.
//
// See the [jpc], [bitcode], [dispatch], [hostsim] and [runner] packages for
// detailed API documentation.
package jpcguest
