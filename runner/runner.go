// Package runner loads a compiled waPC guest into wazero and drives it the
// way a content fabric node would: one fresh instance per request, host
// calls answered by a HostFunc.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/golang/glog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// HostFunc answers a __host_call from the guest. binding carries the
// request id, namespace the host binding and operation the method.
type HostFunc func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error)

// FromBridge adapts host primitives to a HostFunc.
func FromBridge(h bitcode.Host) HostFunc {
	h = h.WithDefaults()
	return func(_ context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
		return h.Call(binding, namespace, operation, payload)
	}
}

// Runner owns a wazero runtime and one compiled guest module.
type Runner struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	host     HostFunc
	cfg      config
	mu       sync.RWMutex
	closed   bool
}

// New compiles wasm and prepares the host imports. A nil host answers every
// call with an error.
func New(ctx context.Context, wasm []byte, host HostFunc, opts ...Option) (*Runner, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if host == nil {
		host = func(context.Context, string, string, string, []byte) ([]byte, error) {
			return nil, errors.New("no host configured")
		}
	}

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	r := &Runner{
		runtime: wazero.NewRuntimeWithConfig(ctx, rtConfig),
		cache:   cache,
		host:    host,
		cfg:     cfg,
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r.runtime); err != nil {
		r.Close()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	if err := instantiateHost(ctx, r.runtime); err != nil {
		r.Close()
		return nil, err
	}

	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("compile guest: %w", err)
	}
	r.compiled = compiled
	return r, nil
}

// Invoke instantiates the guest and runs one __guest_call for operation.
func (r *Runner) Invoke(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	if r.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.timeout)
		defer cancel()
	}

	inv := &invocation{
		ctx:       ctx,
		operation: []byte(operation),
		payload:   payload,
		host:      r.host,
		log:       r.cfg.logger,
	}
	ctx = context.WithValue(ctx, invocationKey{}, inv)

	moduleConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions().
		WithStdout(os.Stderr).
		WithStderr(os.Stderr)

	mod, err := r.runtime.InstantiateModule(ctx, r.compiled, moduleConfig)
	if err != nil {
		return nil, r.failure(ctx, inv, "instantiate", err)
	}
	defer mod.Close(ctx)

	for _, name := range []string{"_initialize", "_start", "wapc_init"} {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			continue
		}
		if _, err := fn.Call(ctx); err != nil && !exitedCleanly(err) {
			return nil, r.failure(ctx, inv, name, err)
		}
	}

	call := mod.ExportedFunction("__guest_call")
	if call == nil {
		return nil, ErrNoGuestCall
	}
	res, err := call.Call(ctx, uint64(len(inv.operation)), uint64(len(inv.payload)))
	if err != nil {
		return nil, r.failure(ctx, inv, "__guest_call", err)
	}
	if inv.aborted != nil {
		return nil, inv.aborted
	}
	if len(res) == 0 || uint32(res[0]) != 1 {
		return nil, &GuestError{Operation: operation, Message: inv.guestErr}
	}
	return inv.response, nil
}

func (r *Runner) failure(ctx context.Context, inv *invocation, stage string, err error) error {
	if inv.aborted != nil {
		return inv.aborted
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timeout after %v", r.cfg.timeout)
	}
	glog.Warningf("runner: %s failed: %v", stage, err)
	return fmt.Errorf("%s: %w", stage, err)
}

// Close releases the runtime and the compilation cache.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	ctx := context.Background()
	var errs []error
	if err := r.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.cache != nil {
		if err := r.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func exitedCleanly(err error) bool {
	var exit *sys.ExitError
	return errors.As(err, &exit) && exit.ExitCode() == 0
}
