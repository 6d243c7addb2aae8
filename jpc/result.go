package jpc

import (
	"encoding/json"
	"fmt"
)

// Result pairs a payload with an optional error. Err is nil on success;
// check IsError rather than inferring success from the payload.
type Result struct {
	Payload []byte
	Err     *Error
}

// Success wraps payload as a successful result.
func Success(payload []byte) Result {
	return Result{Payload: payload}
}

// SuccessJSON encodes v and wraps it as a successful result.
func SuccessJSON(v any) Result {
	b, err := json.Marshal(v)
	if err != nil {
		return Fail("encode result", FieldKind, string(KindInvalid), FieldDesc, err.Error())
	}
	return Success(b)
}

// Failure wraps a diagnostic payload with err. A nil err is replaced with an
// unclassified error so that the result still reports failure.
func Failure(payload []byte, err *Error) Result {
	if err == nil {
		err = E("unknown", KindOther)
	}
	return Result{Payload: payload, Err: err}
}

// FromError returns a failed result whose payload is the encoded err.
func FromError(err *Error) Result {
	if err == nil {
		err = E("unknown", KindOther)
	}
	b, _ := err.MarshalJSON()
	return Result{Payload: b, Err: err}
}

// Fail builds an Error from op and kv and returns it as a failed result.
func Fail(op string, kv ...string) Result {
	if op == "" {
		op = "unknown"
	}
	return FromError(NewError(op, kv...))
}

// IsError reports whether the result carries an error.
func (r Result) IsError() bool {
	return r.Err.IsError()
}

// Decode parses the payload as JSON into v.
func (r Result) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("decode result: empty payload")
	}
	return json.Unmarshal(r.Payload, v)
}

// Object parses the payload as a JSON object.
func (r Result) Object() (map[string]any, error) {
	var m map[string]any
	if err := r.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotObject
	}
	return m, nil
}

func (r Result) String() string {
	if r.IsError() {
		return "error: " + r.Err.Error()
	}
	return string(r.Payload)
}
