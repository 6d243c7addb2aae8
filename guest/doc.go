// Package guest exports a dispatcher through the waPC guest protocol.
//
// A module built with TinyGo registers its handlers and calls Serve from
// main:
//
//	func main() {
//	    reg := dispatch.NewRegistry()
//	    reg.Register("content", proxy.Handle)
//	    guest.Serve(reg)
//	}
//
// Serve answers the "_jpc" and "_JPC" operations. Host calls made by
// handlers go through wapc.HostCall with the request id as the waPC binding,
// the JPC binding as namespace and the method as operation.
package guest
