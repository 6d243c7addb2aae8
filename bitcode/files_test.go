package bitcode_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/caffeineduck/jpcguest/hostsim"
	"github.com/caffeineduck/jpcguest/jpc"
)

var errReadFailed = errors.New("read failed")

func TestQDownloadFile(t *testing.T) {
	h := hostsim.New(hostsim.WithFile("/img.png", []byte("PNGDATA")))
	c := newContext(h)

	r := c.QDownloadFile("/img.png", "hq__1")
	if r.IsError() {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if string(r.Payload) != "PNGDATA" {
		t.Errorf("expected PNGDATA, got %q", r.Payload)
	}

	var p map[string]string
	json.Unmarshal(h.CallsTo("core", "QFileToStream")[0].Params(), &p)
	if p["stream_id"] != "sid-1" || p["path"] != "/img.png" || p["hash_or_token"] != "hq__1" {
		t.Errorf("unexpected QFileToStream params %v", p)
	}
	// The stream stays open for cleanup on success.
	if len(c.OpenStreams()) != 1 {
		t.Errorf("expected the stream to remain tracked, got %v", c.OpenStreams())
	}
}

func TestQDownloadFileClosesOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *hostsim.Host)
		wantKind jpc.Kind
	}{
		{"missing file", func(h *hostsim.Host) {}, jpc.KindNotExist},
		{"zero written", func(h *hostsim.Host) {
			h.Result("core", "QFileToStream", map[string]int{"written": 0})
		}, jpc.KindNotExist},
		{"no written field", func(h *hostsim.Host) {
			h.Result("core", "QFileToStream", map[string]int{})
		}, jpc.KindInvalid},
		{"read fails", func(h *hostsim.Host) {
			h.Result("core", "QFileToStream", map[string]int{"written": 3})
			h.Handle("sid-1", "Read", func(hostsim.Call) ([]byte, error) { return nil, errReadFailed })
		}, jpc.KindIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hostsim.New(hostsim.WithStreams())
			tt.setup(h)
			c := newContext(h)

			r := c.QDownloadFile("/nope", "hq__1")
			if !r.IsError() {
				t.Fatal("expected error")
			}
			if r.Err.Op() != "QDownloadFile" {
				t.Errorf("expected op QDownloadFile, got %q", r.Err.Op())
			}
			if r.Err.Kind() != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, r.Err.Kind())
			}
			if h.Closes("sid-1") != 1 {
				t.Errorf("expected the stream closed once, got %d", h.Closes("sid-1"))
			}
			if len(c.OpenStreams()) != 0 {
				t.Errorf("expected no open streams, got %v", c.OpenStreams())
			}
			if err := c.Cleanup(); err != nil || h.Closes("sid-1") != 1 {
				t.Error("cleanup should not close the stream again")
			}
		})
	}
}

func TestQDownloadFileCloseError(t *testing.T) {
	h := hostsim.New(hostsim.WithStreams())
	h.Error("ctx", "CloseStream", "close failed")
	c := newContext(h)

	r := c.QDownloadFile("/nope", "hq__1")
	if _, ok := r.Err.Get("close_error"); !ok {
		t.Errorf("expected close_error field, got %v", r.Err)
	}
}

func TestQDownloadFileNoStream(t *testing.T) {
	h := hostsim.New()
	r := newContext(h).QDownloadFile("/a", "hq")
	if !r.IsError() || r.Err.Kind() != jpc.KindIO {
		t.Errorf("expected I/O error, got %v", r)
	}
	if len(h.CallsTo("core", "QFileToStream")) != 0 {
		t.Error("no content call should be made without a stream")
	}
}

func TestQUploadToFile(t *testing.T) {
	h := hostsim.New(hostsim.WithStreams())
	c := newContext(h)

	r := c.QUploadToFile("tqw__2", []byte("hello"), "/out.txt", "text/plain")
	if r.IsError() {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if data, ok := h.File("/out.txt"); !ok || string(data) != "hello" {
		t.Errorf("expected uploaded file, got %q %v", data, ok)
	}

	var p map[string]any
	json.Unmarshal(h.CallsTo("core", "QCreateFileFromStream")[0].Params(), &p)
	if p["qwtoken"] != "tqw__2" || p["mime"] != "text/plain" || p["size"] != float64(5) || p["stream_id"] != "sid-1" {
		t.Errorf("unexpected params %v", p)
	}
	if h.Closes("sid-1") != 1 || len(c.OpenStreams()) != 0 {
		t.Error("upload stream should be closed once")
	}
}

func TestQUploadToFileDefaultsWriteToken(t *testing.T) {
	h := hostsim.New(hostsim.WithStreams())
	c := newContext(h)

	c.QUploadToFile("", []byte("x"), "/x", "text/plain")
	var p map[string]any
	json.Unmarshal(h.CallsTo("core", "QCreateFileFromStream")[0].Params(), &p)
	if p["qwtoken"] != "tqw__1" {
		t.Errorf("expected request write token, got %v", p["qwtoken"])
	}
}

func TestQUploadToFileFailure(t *testing.T) {
	h := hostsim.New(hostsim.WithStreams())
	h.Error("core", "QCreateFileFromStream", map[string]string{"op": "QCreateFileFromStream", "kind": "permission denied"})
	c := newContext(h)

	r := c.QUploadToFile("tqw", []byte("hello"), "/out.txt", "text/plain")
	if !r.IsError() || r.Err.Kind() != jpc.KindPermission {
		t.Fatalf("expected permission error, got %v", r)
	}
	if r.Err.Cause().Op() != "QCreateFileFromStream" {
		t.Errorf("expected cause op, got %v", r.Err.Cause())
	}
	if h.Closes("sid-1") != 1 {
		t.Error("stream should be closed on failure")
	}
}
