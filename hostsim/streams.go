package hostsim

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/caffeineduck/jpcguest/jpc"
)

type stream struct {
	data     []byte
	pos      int
	fileName string
	closes   int
}

type streamTable struct {
	next   int
	byID   map[string]*stream
	byFile map[string]*stream
}

func newStreamTable() *streamTable {
	return &streamTable{
		byID:   make(map[string]*stream),
		byFile: make(map[string]*stream),
	}
}

func (t *streamTable) open(file bool) (string, *stream) {
	t.next++
	id := "sid-" + strconv.Itoa(t.next)
	s := &stream{}
	if file {
		s.fileName = "file-" + strconv.Itoa(t.next)
		t.byFile[s.fileName] = s
	}
	t.byID[id] = s
	return id, s
}

// emulate answers the stream and file operations when streams are enabled.
func (h *Host) emulate(c Call) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams == nil {
		return nil, false
	}
	t := h.streams

	if s, ok := t.byID[c.Binding]; ok {
		switch c.Method {
		case "Write":
			if s.closes > 0 {
				return errorDoc(c.Method, jpc.KindIO, "stream closed"), true
			}
			s.data = append(s.data, c.Payload...)
			return []byte(fmt.Sprintf(`{"written":%d}`, len(c.Payload))), true
		case "Read":
			n := min(len(c.Payload), len(s.data)-s.pos)
			out := append([]byte(nil), s.data[s.pos:s.pos+n]...)
			s.pos += n
			return out, true
		}
		return nil, false
	}

	var p struct {
		StreamID string `json:"stream_id"`
		FileName string `json:"file_name"`
		Path     string `json:"path"`
	}
	_ = json.Unmarshal(c.Params(), &p)

	switch (route{c.Binding, c.Method}) {
	case route{bitcode.BindingCtx, "NewStream"}:
		id, _ := t.open(false)
		return resultDoc(map[string]string{"stream_id": id}), true
	case route{bitcode.BindingCtx, "NewFileStream"}:
		id, s := t.open(true)
		return resultDoc(map[string]string{"stream_id": id, "file_name": s.fileName}), true
	case route{bitcode.BindingCtx, "CloseStream"}:
		s, ok := t.byID[p.StreamID]
		if !ok {
			return errorDoc(c.Method, jpc.KindNotExist, "unknown stream "+p.StreamID), true
		}
		s.closes++
		return resultDoc(map[string]string{"stream_id": p.StreamID}), true
	case route{bitcode.BindingCore, "FileStreamSize"}:
		s, ok := t.byFile[p.FileName]
		if !ok {
			return errorDoc(c.Method, jpc.KindNotExist, "unknown file stream "+p.FileName), true
		}
		return resultDoc(map[string]int{"file_size": len(s.data)}), true
	case route{bitcode.BindingCore, "QFileToStream"}:
		s, ok := t.byID[p.StreamID]
		if !ok {
			return errorDoc(c.Method, jpc.KindNotExist, "unknown stream "+p.StreamID), true
		}
		data, ok := h.files[p.Path]
		if !ok {
			return errorDoc(c.Method, jpc.KindNotExist, "no file at "+p.Path), true
		}
		s.data = append(s.data, data...)
		return resultDoc(map[string]int{"written": len(data)}), true
	case route{bitcode.BindingCore, "FileToStream"}:
		s, ok := t.byID[p.StreamID]
		src, found := t.byFile[p.Path]
		if !ok || !found {
			return errorDoc(c.Method, jpc.KindNotExist, "unknown stream or file"), true
		}
		s.data = append(s.data, src.data...)
		return resultDoc(map[string]int{"written": len(src.data)}), true
	case route{bitcode.BindingCore, "QCreateFileFromStream"}:
		s, ok := t.byID[p.StreamID]
		if !ok {
			return errorDoc(c.Method, jpc.KindNotExist, "unknown stream "+p.StreamID), true
		}
		data := append([]byte(nil), s.data[s.pos:]...)
		h.files[p.Path] = data
		return resultDoc(map[string]any{"path": p.Path, "size": len(data)}), true
	}
	return nil, false
}

func resultDoc(v any) []byte {
	b, _ := json.Marshal(map[string]any{"result": v})
	return b
}

func errorDoc(op string, kind jpc.Kind, desc string) []byte {
	return errorObject(jpc.E(op, kind, jpc.FieldDesc, desc))
}

func errorObject(e *jpc.Error) []byte {
	return append(append([]byte(`{"error":`), e.ObjectJSON()...), '}')
}

// Stream returns every byte written to stream id and whether it exists.
func (h *Host) Stream(id string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams == nil {
		return nil, false
	}
	s, ok := h.streams.byID[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), s.data...), true
}

// Feed appends data to stream id for later reads.
func (h *Host) Feed(id string, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams == nil {
		return false
	}
	s, ok := h.streams.byID[id]
	if ok {
		s.data = append(s.data, data...)
	}
	return ok
}

// Closes reports how many times stream id was closed.
func (h *Host) Closes(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams == nil {
		return 0
	}
	if s, ok := h.streams.byID[id]; ok {
		return s.closes
	}
	return 0
}

// StreamIDs returns the ids of every stream opened so far.
func (h *Host) StreamIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams == nil {
		return nil
	}
	ids := make([]string, 0, h.streams.next)
	for i := 1; i <= h.streams.next; i++ {
		ids = append(ids, "sid-"+strconv.Itoa(i))
	}
	return ids
}

// File returns the content file stored at path.
func (h *Host) File(path string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[path]
	return append([]byte(nil), data...), ok
}
