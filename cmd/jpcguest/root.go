package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/caffeineduck/jpcguest/hostsim"
	"github.com/caffeineduck/jpcguest/jpc"
	"github.com/caffeineduck/jpcguest/runner"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

// guestOperation is the waPC operation the dispatcher registers.
const guestOperation = "_jpc"

var rootCmd = &cobra.Command{
	Use:   "jpcguest",
	Short: "Run JPC bitcode guest modules against a scripted host",
	Long: `jpcguest - Drive waPC guest modules built on the JPC dispatcher.

Requests are JPC envelopes. They can be read from a file or built from a
path and query parameters. Host calls made by the guest are answered by an
in-process host configured with a TOML script and can be recorded to a
sqlite transcript.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().String("memory", "", "Guest memory limit, e.g. 16mb, 256mb, 1gb (default: wazero limit)")
	rootCmd.PersistentFlags().String("operation", guestOperation, "waPC operation to invoke")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Per-request timeout")
	rootCmd.PersistentFlags().String("script", "", "TOML script answering host calls")

	// glog registers its flags on the standard flag set.
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	_ = flag.Set("logtostderr", "true")
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// parseMemoryLimit converts a size such as 64mb into wasm pages.
func parseMemoryLimit(limit string) (uint32, error) {
	s := strings.ToLower(strings.TrimSpace(limit))
	if s == "" {
		return 0, nil
	}
	unit := uint64(1)
	for suffix, mult := range map[string]uint64{"kb": 1 << 10, "mb": 1 << 20, "gb": 1 << 30} {
		if strings.HasSuffix(s, suffix) {
			s, unit = strings.TrimSuffix(s, suffix), mult
			break
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid memory limit %q", limit)
	}
	pages := n * unit / (64 << 10)
	if pages == 0 || pages > 65536 {
		return 0, fmt.Errorf("memory limit %q out of range", limit)
	}
	return uint32(pages), nil
}

// buildRequest assembles an inbound envelope routed to path. Each query
// entry is key=value; repeated keys collect into one list.
func buildRequest(id, path string, query []string, qinfo jpc.QInfo) ([]byte, error) {
	if id == "" {
		id = newID()
	}
	q := make(map[string][]string)
	for _, kv := range query {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid query %q (expected key=value)", kv)
		}
		q[k] = append(q[k], v)
	}
	rawQuery, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	params, err := json.Marshal(map[string]jpc.HTTPParams{
		"http": {Path: path, Verb: "GET", Query: rawQuery},
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(jpc.Envelope{JPC: jpc.Version, ID: id, Params: params, QInfo: qinfo})
}

// newHost builds the in-process host from the --script flag. Writes to the
// output stream are collected into body.
func newHost(cmd *cobra.Command, body *syncBuffer) (*hostsim.Host, error) {
	scriptPath, _ := cmd.Flags().GetString("script")

	h := hostsim.New(hostsim.WithStreams())
	h.Handle(bitcode.OutputStream, "Write", func(c hostsim.Call) ([]byte, error) {
		n := body.Write(c.Payload)
		return []byte(fmt.Sprintf(`{"written":%d}`, n)), nil
	})
	if scriptPath != "" {
		s, err := hostsim.LoadScript(scriptPath)
		if err != nil {
			return nil, err
		}
		s.Apply(h)
	}
	return h, nil
}

// openRunner compiles the module at path with the root flags applied.
func openRunner(ctx context.Context, cmd *cobra.Command, path string, host runner.HostFunc) (*runner.Runner, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	noCache, _ := cmd.Flags().GetBool("no-cache")
	memory, _ := cmd.Flags().GetString("memory")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	opts := []runner.Option{runner.WithTimeout(timeout)}
	if !noCache {
		opts = append(opts, runner.WithDiskCache())
	}
	pages, err := parseMemoryLimit(memory)
	if err != nil {
		return nil, err
	}
	if pages > 0 {
		opts = append(opts, runner.WithMemoryLimit(pages))
	}
	return runner.New(ctx, wasm, host, opts...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p)
}

// Take returns the collected bytes and resets the buffer.
func (b *syncBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buf
	b.buf = nil
	return out
}
