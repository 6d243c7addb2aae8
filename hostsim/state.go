package hostsim

import (
	"encoding/json"
	"fmt"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/caffeineduck/jpcguest/jpc"
)

// stateStore holds string values per state store id and key.
type stateStore struct {
	data    map[string]map[string]string
	created int
}

// WithStateStore emulates QCreateQStateStore, QSSGet, QSSSet and QSSDelete
// on the core binding with an in-memory store.
func WithStateStore() Option {
	return func(h *Host) {
		if h.state == nil {
			h.state = &stateStore{data: make(map[string]map[string]string)}
		}
	}
}

func (h *Host) emulateState(c Call) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == nil || c.Binding != bitcode.BindingCore {
		return nil, false
	}

	var p struct {
		QSSID string  `json:"qssid"`
		Key   string  `json:"key"`
		Val   *string `json:"val"`
	}
	switch c.Method {
	case "QCreateQStateStore":
		h.state.created++
		id := fmt.Sprintf("qss_%d", h.state.created)
		h.state.data[id] = make(map[string]string)
		return resultDoc(id), true
	case "QSSGet", "QSSSet", "QSSDelete":
	default:
		return nil, false
	}
	if err := json.Unmarshal(c.Params(), &p); err != nil || p.Key == "" {
		return errorDoc(c.Method, jpc.KindInvalid, "key required"), true
	}

	switch c.Method {
	case "QSSGet":
		v, ok := h.state.data[p.QSSID][p.Key]
		if !ok {
			return errorDoc(c.Method, jpc.KindNotExist, "no value for "+p.Key), true
		}
		return resultDoc(v), true
	case "QSSSet":
		if p.Val == nil {
			return errorDoc(c.Method, jpc.KindInvalid, "val required"), true
		}
		m := h.state.data[p.QSSID]
		if m == nil {
			m = make(map[string]string)
			h.state.data[p.QSSID] = m
		}
		m[p.Key] = *p.Val
	default:
		delete(h.state.data[p.QSSID], p.Key)
	}
	return resultDoc("SUCCESS"), true
}

// State returns the value stored under key in state store qssid.
func (h *Host) State(qssid, key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == nil {
		return "", false
	}
	v, ok := h.state.data[qssid][key]
	return v, ok
}
