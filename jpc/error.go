package jpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-json-experiment/json/jsontext"
)

// Well-known field keys.
const (
	FieldOp    = "op"
	FieldKind  = "kind"
	FieldDesc  = "desc"
	FieldCause = "cause"
)

// hostOp names errors the host sent without an op of their own.
const hostOp = "host"

var errNotObject = errors.New("not a JSON object")

// Field is one diagnostic key/value pair of an Error. Value holds encoded JSON.
type Field struct {
	Key   string
	Value jsontext.Value
}

// Error is a classified error carrying an ordered set of diagnostic fields.
// The first field is always "op". A nil *Error is the empty error: every
// method is safe to call on it and IsError reports false.
type Error struct {
	fields []Field
}

// NewError returns an Error for op followed by the key/value pairs in kv,
// stored in insertion order. A dangling key without a value is ignored.
// An empty op yields nil, the empty error.
func NewError(op string, kv ...string) *Error {
	if op == "" {
		return nil
	}
	e := &Error{}
	e.Set(FieldOp, op)
	for i := 0; i+1 < len(kv); i += 2 {
		e.Set(kv[i], kv[i+1])
	}
	return e
}

// E returns an Error for op classified as kind.
func E(op string, kind Kind, kv ...string) *Error {
	return NewError(op, append([]string{FieldKind, string(kind)}, kv...)...)
}

// Wrap returns a new Error for op that inherits the kind of cause and
// embeds cause under the "cause" field. Pairs in kv may override the kind.
func Wrap(op string, cause *Error, kv ...string) *Error {
	kind := KindOther
	if cause != nil {
		kind = cause.Kind()
	}
	e := E(op, kind, kv...)
	if e == nil {
		return cause
	}
	if cause != nil {
		e.SetJSON(FieldCause, cause.ObjectJSON())
	}
	return e
}

// ParseError classifies an error value received from the host. Objects keep
// their fields in order with "op" moved first; an object whose only member is
// an "error" object is unwrapped. A string becomes the op. Anything else is
// kept verbatim as the op.
func ParseError(raw []byte) *Error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return E(hostOp, KindOther, FieldDesc, "empty error")
	}
	switch jsontext.Value(raw).Kind() {
	case '{':
		fields, err := decodeFields(raw)
		if err != nil {
			return E(hostOp, KindInvalid, FieldDesc, "malformed error", "raw", string(raw))
		}
		if len(fields) == 1 && fields[0].Key == "error" && fields[0].Value.Kind() == '{' {
			return ParseError(fields[0].Value)
		}
		return fromFields(fields)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return NewError(s)
		}
		return E(hostOp, KindOther)
	}
	return NewError(string(raw))
}

func fromFields(fields []Field) *Error {
	op := hostOp
	for _, f := range fields {
		if f.Key == FieldOp {
			if s := valueString(f.Value); s != "" {
				op = s
			}
			break
		}
	}
	e := NewError(op)
	for _, f := range fields {
		if f.Key != FieldOp {
			e.SetJSON(f.Key, f.Value)
		}
	}
	return e
}

func decodeFields(raw []byte) ([]Field, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(raw), jsontext.AllowDuplicateNames(true))
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}
	if tok.Kind() != '{' {
		return nil, errNotObject
	}
	var fields []Field
	for dec.PeekKind() != '}' {
		tok, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		// The token is invalidated by the next read.
		key := tok.String()
		val, err := dec.ReadValue()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: key, Value: jsontext.Value(bytes.Clone(val))})
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, err
	}
	return fields, nil
}

// Set stores value as a JSON string under key. An existing key keeps its
// position.
func (e *Error) Set(key, value string) {
	b, _ := json.Marshal(value)
	e.SetJSON(key, b)
}

// SetJSON stores an encoded JSON value under key. Input that is not valid
// JSON is stored as a string.
func (e *Error) SetJSON(key string, raw []byte) {
	if e == nil {
		return
	}
	if !jsontext.Value(raw).IsValid() {
		raw, _ = json.Marshal(string(raw))
	}
	v := jsontext.Value(bytes.Clone(raw))
	for i := range e.fields {
		if e.fields[i].Key == key {
			e.fields[i].Value = v
			return
		}
	}
	e.fields = append(e.fields, Field{Key: key, Value: v})
}

// Get returns the value stored under key. String values are unquoted, other
// values are returned as JSON text.
func (e *Error) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, f := range e.fields {
		if f.Key == key {
			return valueString(f.Value), true
		}
	}
	return "", false
}

func valueString(v jsontext.Value) string {
	if v.Kind() == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return string(v)
}

// IsError reports whether e is an actual error.
func (e *Error) IsError() bool { return e != nil }

func (e *Error) Op() string {
	op, _ := e.Get(FieldOp)
	return op
}

func (e *Error) Desc() string {
	desc, _ := e.Get(FieldDesc)
	return desc
}

// Kind returns the classification of e. An error without a kind field is
// KindOther; the empty error has no kind.
func (e *Error) Kind() Kind {
	if e == nil {
		return ""
	}
	k, ok := e.Get(FieldKind)
	if !ok {
		return KindOther
	}
	return ParseKind(k)
}

// Cause returns the embedded cause, if any.
func (e *Error) Cause() *Error {
	if e == nil {
		return nil
	}
	for _, f := range e.fields {
		if f.Key == FieldCause && f.Value.Kind() == '{' {
			return ParseError(f.Value)
		}
	}
	return nil
}

// Fields returns a copy of the ordered fields.
func (e *Error) Fields() []Field {
	if e == nil {
		return nil
	}
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Op())
	sep := ": "
	for _, f := range e.fields {
		if f.Key == FieldOp {
			continue
		}
		b.WriteString(sep)
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(valueString(f.Value))
		sep = ", "
	}
	return b.String()
}

// Is matches a Kind target against the kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind() == k
}

func (e *Error) Unwrap() error {
	if c := e.Cause(); c != nil {
		return c
	}
	return nil
}

// ObjectJSON encodes the fields as a JSON object in insertion order.
func (e *Error) ObjectJSON() []byte {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf)
	if err := e.encodeObject(enc); err != nil {
		return []byte("{}")
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// MarshalJSON encodes e as {"error": {field: value, ...}}.
func (e *Error) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf)
	if err := enc.WriteToken(jsontext.ObjectStart); err != nil {
		return nil, err
	}
	if err := enc.WriteToken(jsontext.String("error")); err != nil {
		return nil, err
	}
	if err := e.encodeObject(enc); err != nil {
		return nil, err
	}
	if err := enc.WriteToken(jsontext.ObjectEnd); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (e *Error) encodeObject(enc *jsontext.Encoder) error {
	if err := enc.WriteToken(jsontext.ObjectStart); err != nil {
		return err
	}
	if e != nil {
		for _, f := range e.fields {
			if err := enc.WriteToken(jsontext.String(f.Key)); err != nil {
				return err
			}
			if err := enc.WriteValue(f.Value); err != nil {
				return err
			}
		}
	}
	return enc.WriteToken(jsontext.ObjectEnd)
}
