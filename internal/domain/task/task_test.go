package task

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr error
	}{
		{in: "todo", want: StatusTodo},
		{in: "in-progress", want: StatusInProgress},
		{in: "done", want: StatusDone},
		{in: "DONE", wantErr: ErrInvalidStatus},
		{in: "", wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected err %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStatusPresentationIsExhaustive(t *testing.T) {
	for _, s := range []Status{StatusTodo, StatusInProgress, StatusDone} {
		if s.Label() == "unknown" {
			t.Fatalf("status %q has no label", s)
		}
		if s.Color() == "gray" {
			t.Fatalf("status %q has no color", s)
		}
	}

	if Status("blocked").Color() != "gray" {
		t.Fatalf("unknown status should fall back to gray")
	}
}
