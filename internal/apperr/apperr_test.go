package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil cause", New(NotFound, "service missing"), NotFound},
		{"wrapped once", fmt.Errorf("query: %w", New(Validation, "bad mode")), Validation},
		{"wrapped kind error", Wrap(Conflict, "insert exception", errors.New("duplicate key")), Conflict},
		{"plain error", errors.New("connection refused"), Infrastructure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(Conflict, "insert exception", cause)

	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
	if err.Error() != "insert exception: duplicate key" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestIsKind(t *testing.T) {
	if IsKind(nil, Infrastructure) {
		t.Fatal("nil error must not match any kind")
	}
	if !IsKind(New(Validation, "x"), Validation) {
		t.Fatal("expected Validation match")
	}
	if IsKind(New(Validation, "x"), Conflict) {
		t.Fatal("Validation must not match Conflict")
	}
}
