package jpc

import (
	"testing"
)

func TestSuccess(t *testing.T) {
	r := Success([]byte("x"))
	if r.IsError() {
		t.Error("success should not be an error")
	}
	if r.String() != "x" {
		t.Errorf("expected x, got %q", r.String())
	}

	// An empty payload is still a success.
	if Success(nil).IsError() {
		t.Error("empty success should not be an error")
	}
}

func TestFailure(t *testing.T) {
	r := Failure([]byte(`"y"`), E("op", KindInvalid))
	if !r.IsError() {
		t.Fatal("expected error")
	}
	if string(r.Payload) != `"y"` {
		t.Errorf("payload = %s", r.Payload)
	}

	r = Failure(nil, nil)
	if !r.IsError() || r.Err.Kind() != KindOther {
		t.Errorf("nil error should become unclassified, got %v", r.Err)
	}
}

func TestFail(t *testing.T) {
	r := Fail("TempDir", FieldKind, string(KindPermission), FieldDesc, "denied")
	if !r.IsError() {
		t.Fatal("expected error")
	}
	back := ParseError(r.Payload)
	if back.Op() != "TempDir" || back.Kind() != KindPermission || back.Desc() != "denied" {
		t.Errorf("unexpected payload error: %v", back)
	}

	if Fail("").Err.Op() != "unknown" {
		t.Error("empty op should be named unknown")
	}
}

func TestSuccessJSON(t *testing.T) {
	r := SuccessJSON(map[string]int{"a": 1})
	if r.IsError() {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	var got map[string]int
	if err := r.Decode(&got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != 1 {
		t.Errorf("expected a=1, got %v", got)
	}

	bad := SuccessJSON(make(chan int))
	if !bad.IsError() || bad.Err.Kind() != KindInvalid {
		t.Errorf("expected invalid error, got %v", bad.Err)
	}
}

func TestResultObject(t *testing.T) {
	m, err := Success([]byte(`{"stream_id":"s1"}`)).Object()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["stream_id"] != "s1" {
		t.Errorf("expected s1, got %v", m["stream_id"])
	}

	if _, err := Success([]byte("null")).Object(); err == nil {
		t.Error("null should not be an object")
	}
	if _, err := Success([]byte(`"s"`)).Object(); err == nil {
		t.Error("string should not be an object")
	}
	if _, err := Success(nil).Object(); err == nil {
		t.Error("empty payload should not decode")
	}
}

func TestResultStringOnError(t *testing.T) {
	r := FromError(E("x", KindIO))
	if got, want := r.String(), "error: x: kind=I/O error"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
