package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caffeineduck/jpcguest/dispatch"
	"github.com/caffeineduck/jpcguest/internal/transcript"
	"github.com/caffeineduck/jpcguest/jpc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores the flags a previous execution set on cmd and its
// subcommands. Commands are package globals, so a --help left set makes
// every later run print usage.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"jpcguest",
		"waPC",
		"run",
		"repl",
		"serve",
		"transcript",
		"--no-cache",
		"--logtostderr",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIRunHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "run", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"--request",
		"--path",
		"--query",
		"--script",
		"--record",
		"--body",
		"--timeout",
		"--memory",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("run help output should contain %q", phrase)
		}
	}
}

func TestCLIReplHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "repl", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, phrase := range []string{"--history", "Command history", "exit"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("repl help output should contain %q", phrase)
		}
	}
}

func TestCLIServeHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "serve", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, phrase := range []string{"--port", "/jpc", "/health"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("serve help output should contain %q", phrase)
		}
	}
}

func TestCLIRunRequiresModule(t *testing.T) {
	_, err := executeCommand(rootCmd, "run")
	if err == nil {
		t.Error("expected error without module argument")
	}
}

func TestCLIFlagsDoNotLeakBetweenRuns(t *testing.T) {
	if _, err := executeCommand(rootCmd, "run", "--help"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := executeCommand(rootCmd, "run"); err == nil {
		t.Error("expected error without module argument after --help")
	}

	dir := t.TempDir()
	if _, err := executeCommand(rootCmd, "run", filepath.Join(dir, "m.wasm"), "--path", "/echo", "-q", "a=1"); err == nil {
		t.Fatal("expected error for missing module")
	}
	_, err := executeCommand(rootCmd, "run", filepath.Join(dir, "m.wasm"))
	if err == nil || !strings.Contains(err.Error(), "--request or --path") {
		t.Errorf("expected --path to be reset, got %v", err)
	}
	if q, _ := runCmd.Flags().GetStringArray("query"); len(q) != 0 {
		t.Errorf("expected query to be reset, got %v", q)
	}
}

func TestCLIRunRequiresRequest(t *testing.T) {
	dir := t.TempDir()
	_, err := executeCommand(rootCmd, "run", filepath.Join(dir, "missing.wasm"), "--no-cache")
	if err == nil || !strings.Contains(err.Error(), "--request or --path") {
		t.Errorf("expected missing request error, got %v", err)
	}
}

func TestCLIRunMissingModule(t *testing.T) {
	dir := t.TempDir()
	_, err := executeCommand(rootCmd, "run", filepath.Join(dir, "missing.wasm"), "--no-cache", "--path", "/echo")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestCLIRunModuleWithoutGuestCall(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(dir, "empty.wasm")
	if err := os.WriteFile(module, []byte("\x00asm\x01\x00\x00\x00"), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	_, err := executeCommand(rootCmd, "run", module, "--no-cache", "--path", "/echo")
	if err == nil || !strings.Contains(err.Error(), "__guest_call") {
		t.Errorf("expected missing export error, got %v", err)
	}
}

func TestCLIRunBadScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "host.toml")
	if err := os.WriteFile(script, []byte("[[reply]]\nbinding = \"core\"\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	_, err := executeCommand(rootCmd, "run", filepath.Join(dir, "m.wasm"), "--no-cache", "--path", "/echo", "--script", script)
	if err == nil || !strings.Contains(err.Error(), "method required") {
		t.Errorf("expected script validation error, got %v", err)
	}
}

func TestBuildRequest(t *testing.T) {
	raw, err := buildRequest("id-1", "/content", []string{"QUERY=cats", "tag=a", "tag=b", "empty="}, jpc.QInfo{Hash: "hq__1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, perr := dispatch.Parse(raw)
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if req.ID != "id-1" || req.Method != "content" || req.QInfo.Hash != "hq__1" {
		t.Errorf("unexpected request %+v", req)
	}
	hp, _ := req.HTTP()
	var q map[string][]string
	json.Unmarshal(hp.Query, &q)
	if len(q["tag"]) != 2 || q["tag"][1] != "b" || q["QUERY"][0] != "cats" || q["empty"][0] != "" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestBuildRequestGeneratesID(t *testing.T) {
	a, _ := buildRequest("", "/x", nil, jpc.QInfo{})
	b, _ := buildRequest("", "/x", nil, jpc.QInfo{})
	ra, _ := dispatch.Parse(a)
	rb, _ := dispatch.Parse(b)
	if len(ra.ID) != 26 || ra.ID == rb.ID {
		t.Errorf("expected distinct ULIDs, got %q and %q", ra.ID, rb.ID)
	}
}

func TestBuildRequestBadQuery(t *testing.T) {
	for _, q := range []string{"novalue", "=x"} {
		if _, err := buildRequest("1", "/x", []string{q}, jpc.QInfo{}); err == nil {
			t.Errorf("expected error for %q", q)
		}
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in    string
		pages uint32
		err   bool
	}{
		{"", 0, false},
		{"1mb", 16, false},
		{"256MB", 4096, false},
		{"1gb", 16384, false},
		{"128kb", 2, false},
		{"131072", 2, false},
		{"1kb", 0, true},
		{"lots", 0, true},
		{"8gb", 0, true},
	}
	for _, tt := range tests {
		pages, err := parseMemoryLimit(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("%q: unexpected error state %v", tt.in, err)
			continue
		}
		if pages != tt.pages {
			t.Errorf("%q: expected %d pages, got %d", tt.in, tt.pages, pages)
		}
	}
}

func TestParseLine(t *testing.T) {
	raw, err := parseLine(`{"id":"9"}`)
	if err != nil || string(raw) != `{"id":"9"}` {
		t.Errorf("expected envelope passed through, got %s %v", raw, err)
	}

	raw, err = parseLine("/content QUERY=cats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, perr := dispatch.Parse(raw)
	if perr != nil || req.Method != "content" {
		t.Errorf("unexpected request %+v %v", req, perr)
	}
}

func TestCLITranscriptList(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "t.db")
	store, err := transcript.Open(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	store.Record(ctx, transcript.Entry{RunID: "run-a", RequestID: "r1", Binding: "core", Method: "SQMDGet", Payload: []byte(`{"path":"/x"}`)})
	store.Record(ctx, transcript.Entry{RunID: "run-b", RequestID: "r2", Binding: "ext", Method: "ProxyHttp", Err: "refused"})
	store.Close()

	output, err := executeCommand(rootCmd, "transcript", "list", db, "--run", "", "--payload=false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, phrase := range []string{"SEQ", "core.SQMDGet", "ext.ProxyHttp", "refused"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("transcript output should contain %q:\n%s", phrase, output)
		}
	}

	output, err = executeCommand(rootCmd, "transcript", "list", db, "--run", "run-a", "--payload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(output, "ProxyHttp") || !strings.Contains(output, `> {"path":"/x"}`) {
		t.Errorf("unexpected filtered output:\n%s", output)
	}
}
