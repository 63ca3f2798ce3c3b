package batch

import (
	"errors"
	"testing"
)

func TestNewOK(t *testing.T) {
	tests := []struct {
		created bool
		want    ItemStatus
	}{
		{true, StatusCreated},
		{false, StatusUpdated},
	}
	for _, tt := range tests {
		r := NewOK("evt-1", tt.created)
		if r.ID() != "evt-1" {
			t.Errorf("ID() = %q", r.ID())
		}
		if r.Status() != tt.want {
			t.Errorf("Status() = %q, want %q", r.Status(), tt.want)
		}
		if r.Err() != nil || r.Failed() {
			t.Errorf("unexpected failure: %v", r.Err())
		}
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("bad timestamp")
	r := NewError("evt-2", err)
	if r.Status() != StatusError || !r.Failed() {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestFailures(t *testing.T) {
	results := []Result{
		NewOK("a", true),
		NewError("b", errors.New("x")),
		NewOK("c", false),
		NewError("d", errors.New("y")),
	}
	if n := Failures(results); n != 2 {
		t.Errorf("Failures() = %d, want 2", n)
	}
	if n := Failures(nil); n != 0 {
		t.Errorf("Failures(nil) = %d", n)
	}
}
