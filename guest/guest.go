//go:build tinygo

package guest

import (
	"fmt"

	wapc "github.com/wapc/wapc-guest-tinygo"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/caffeineduck/jpcguest/dispatch"
)

// Operations lists the waPC operation names the dispatcher answers.
var Operations = []string{"_jpc", "_JPC"}

// Host returns the waPC backed host primitives.
func Host() bitcode.Host {
	return bitcode.Host{
		Call: wapc.HostCall,
		Log:  wapc.ConsoleLog,
		Abort: func(msg, source string, line, column uint32) {
			wapc.ConsoleLog(fmt.Sprintf("abort: %s at %s:%d:%d", msg, source, line, column))
		},
	}
}

// Serve registers the dispatcher for registry with the waPC runtime.
func Serve(registry *dispatch.Registry) {
	d := dispatch.New(registry, Host())
	fn := func(payload []byte) ([]byte, error) {
		return d.Dispatch(payload), nil
	}
	funcs := wapc.Functions{}
	for _, op := range Operations {
		funcs[op] = fn
	}
	wapc.RegisterFunctions(funcs)
}
