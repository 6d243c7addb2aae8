package runner

import (
	"context"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/golang/glog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

type invocationKey struct{}

// memory is the part of api.Memory the host imports touch.
type memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// invocation is the state of one __guest_call.
type invocation struct {
	ctx       context.Context
	operation []byte
	payload   []byte
	host      HostFunc
	log       func(string)

	response []byte
	guestErr string
	hostResp []byte
	hostErr  string
	aborted  *AbortError
}

func instantiateHost(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder("wapc").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, opPtr, ptr uint32) {
			withInvocation(ctx, m, func(inv *invocation, mem memory) { inv.guestRequest(mem, opPtr, ptr) })
		}).
		Export("__guest_request").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, n uint32) {
			withInvocation(ctx, m, func(inv *invocation, mem memory) { inv.guestResponse(mem, ptr, n) })
		}).
		Export("__guest_response").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, n uint32) {
			withInvocation(ctx, m, func(inv *invocation, mem memory) { inv.guestError(mem, ptr, n) })
		}).
		Export("__guest_error").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, bdPtr, bdLen, nsPtr, nsLen, opPtr, opLen, ptr, n uint32) uint32 {
			var ok uint32
			withInvocation(ctx, m, func(inv *invocation, mem memory) {
				ok = inv.hostCall(mem, bdPtr, bdLen, nsPtr, nsLen, opPtr, opLen, ptr, n)
			})
			return ok
		}).
		Export("__host_call").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 {
			if inv := invocationFrom(ctx); inv != nil {
				return uint32(len(inv.hostResp))
			}
			return 0
		}).
		Export("__host_response_len").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr uint32) {
			withInvocation(ctx, m, func(inv *invocation, mem memory) { mem.Write(ptr, inv.hostResp) })
		}).
		Export("__host_response").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 {
			if inv := invocationFrom(ctx); inv != nil {
				return uint32(len(inv.hostErr))
			}
			return 0
		}).
		Export("__host_error_len").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr uint32) {
			withInvocation(ctx, m, func(inv *invocation, mem memory) { mem.Write(ptr, []byte(inv.hostErr)) })
		}).
		Export("__host_error").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, n uint32) {
			withInvocation(ctx, m, func(inv *invocation, mem memory) { inv.consoleLog(mem, ptr, n) })
		}).
		Export("__console_log").
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate wapc host module: %w", err)
	}

	_, err = rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, msgPtr, filePtr, line, col uint32) {
			withInvocation(ctx, m, func(inv *invocation, mem memory) { inv.abort(mem, msgPtr, filePtr, line, col) })
			m.CloseWithExitCode(ctx, 255)
		}).
		Export("abort").
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate env host module: %w", err)
	}
	return nil
}

func invocationFrom(ctx context.Context) *invocation {
	inv, _ := ctx.Value(invocationKey{}).(*invocation)
	return inv
}

func withInvocation(ctx context.Context, m api.Module, fn func(*invocation, memory)) {
	inv := invocationFrom(ctx)
	if inv == nil {
		return
	}
	mem := m.Memory()
	if mem == nil {
		return
	}
	fn(inv, mem)
}

func (inv *invocation) guestRequest(mem memory, opPtr, ptr uint32) {
	mem.Write(opPtr, inv.operation)
	mem.Write(ptr, inv.payload)
}

func (inv *invocation) guestResponse(mem memory, ptr, n uint32) {
	inv.response = readCopy(mem, ptr, n)
}

func (inv *invocation) guestError(mem memory, ptr, n uint32) {
	inv.guestErr = string(readCopy(mem, ptr, n))
}

// hostCall forwards to the HostFunc and stages the reply for
// __host_response or __host_error. It reports 1 on success.
func (inv *invocation) hostCall(mem memory, bdPtr, bdLen, nsPtr, nsLen, opPtr, opLen, ptr, n uint32) uint32 {
	binding := string(readCopy(mem, bdPtr, bdLen))
	namespace := string(readCopy(mem, nsPtr, nsLen))
	operation := string(readCopy(mem, opPtr, opLen))
	payload := readCopy(mem, ptr, n)

	inv.hostResp, inv.hostErr = nil, ""
	out, err := inv.host(inv.ctx, binding, namespace, operation, payload)
	if err != nil {
		glog.V(1).Infof("runner: host call %s/%s for %s failed: %v", namespace, operation, binding, err)
		inv.hostErr = err.Error()
		return 0
	}
	inv.hostResp = out
	return 1
}

func (inv *invocation) consoleLog(mem memory, ptr, n uint32) {
	inv.log(string(readCopy(mem, ptr, n)))
}

func (inv *invocation) abort(mem memory, msgPtr, filePtr, line, col uint32) {
	inv.aborted = &AbortError{
		Message: readUTF16(mem, msgPtr),
		Source:  readUTF16(mem, filePtr),
		Line:    line,
		Column:  col,
	}
	glog.Errorf("runner: %v", inv.aborted)
}

// readCopy copies guest memory so it survives the instance.
func readCopy(mem memory, ptr, n uint32) []byte {
	if n == 0 {
		return nil
	}
	b, ok := mem.Read(ptr, n)
	if !ok {
		return nil
	}
	return append([]byte(nil), b...)
}

// readUTF16 decodes an AssemblyScript string. The byte length is stored
// in the four bytes before ptr.
func readUTF16(mem memory, ptr uint32) string {
	if ptr < 4 {
		return ""
	}
	hdr, ok := mem.Read(ptr-4, 4)
	if !ok {
		return ""
	}
	raw, ok := mem.Read(ptr, binary.LittleEndian.Uint32(hdr))
	if !ok {
		return ""
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return string(utf16.Decode(units))
}
