package hostsim

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Script is a declarative host configuration:
//
//	streams = true
//	state = true
//
//	[[reply]]
//	binding = "core"
//	method = "SQMDGet"
//	result = '{"title":"x"}'
//
//	[[file]]
//	path = "/img.png"
//	content = "..."
type Script struct {
	Streams bool    `toml:"streams"`
	State   bool    `toml:"state"`
	Replies []Reply `toml:"reply"`
	Files   []File  `toml:"file"`
}

// Reply answers one method. Exactly one of Result, Error and Raw is set;
// Result and Error hold JSON text.
type Reply struct {
	Binding string  `toml:"binding"`
	Method  string  `toml:"method"`
	Result  *string `toml:"result"`
	Error   *string `toml:"error"`
	Raw     *string `toml:"raw"`
}

// File seeds a content file.
type File struct {
	Path    string `toml:"path"`
	Content string `toml:"content"`
}

// LoadScript reads a TOML script from path.
func LoadScript(path string) (*Script, error) {
	var s Script
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseScript reads a TOML script from text.
func ParseScript(text string) (*Script, error) {
	var s Script
	md, err := toml.Decode(text, &s)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func checkUndecoded(md toml.MetaData) error {
	if keys := md.Undecoded(); len(keys) > 0 {
		return fmt.Errorf("script: unknown key %s", keys[0])
	}
	return nil
}

func (s *Script) validate() error {
	for i := range s.Replies {
		r := &s.Replies[i]
		if r.Method == "" {
			return fmt.Errorf("reply %d: method required", i)
		}
		if r.Binding == "" {
			r.Binding = Any
		}
		set := 0
		for _, v := range []*string{r.Result, r.Error, r.Raw} {
			if v != nil {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("reply %d (%s): exactly one of result, error, raw required", i, r.Method)
		}
		if r.Result != nil && !json.Valid([]byte(*r.Result)) {
			return fmt.Errorf("reply %d (%s): result is not valid JSON", i, r.Method)
		}
		if r.Error != nil && !json.Valid([]byte(*r.Error)) {
			return fmt.Errorf("reply %d (%s): error is not valid JSON", i, r.Method)
		}
	}
	for i, f := range s.Files {
		if f.Path == "" {
			return fmt.Errorf("file %d: path required", i)
		}
	}
	return nil
}

// Apply registers the script's replies and files on h. Later replies for
// the same method replace earlier ones.
func (s *Script) Apply(h *Host) {
	if s.Streams || len(s.Files) > 0 {
		WithStreams()(h)
	}
	if s.State {
		WithStateStore()(h)
	}
	for _, f := range s.Files {
		h.mu.Lock()
		h.files[f.Path] = []byte(f.Content)
		h.mu.Unlock()
	}
	for _, r := range s.Replies {
		switch {
		case r.Result != nil:
			h.Result(r.Binding, r.Method, json.RawMessage(*r.Result))
		case r.Error != nil:
			h.Error(r.Binding, r.Method, json.RawMessage(*r.Error))
		default:
			h.Raw(r.Binding, r.Method, []byte(*r.Raw))
		}
	}
}

// FromScript returns a Host configured by s plus opts.
func FromScript(s *Script, opts ...Option) *Host {
	h := New(opts...)
	s.Apply(h)
	return h
}
