package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"jobharvest/services/harvester/internal/errors"
)

func TestDomainError_ErrorString(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := errors.Fetch("executing request", cause)

	got := err.Error()
	want := "FETCH: executing request: connection refused"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := errors.Persist("nothing written", nil)
	if bare.Error() != "PERSIST: nothing written" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestDomainError_UnwrapAndStack(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.Persist("writing csv", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if len(err.StackTrace()) == 0 {
		t.Error("expected a captured stack trace")
	}
}

func TestIsType(t *testing.T) {
	fetchErr := errors.Fetch("unexpected status code: 503", nil)
	wrapped := fmt.Errorf("page 2: %w", fetchErr)
	nested := errors.Internal("harvest", errors.Fetch("timeout", nil))

	cases := []struct {
		name string
		err  error
		typ  errors.ErrorType
		want bool
	}{
		{"direct", fetchErr, errors.ErrTypeFetch, true},
		{"wrapped by fmt", wrapped, errors.ErrTypeFetch, true},
		{"nested domain error", nested, errors.ErrTypeFetch, true},
		{"outer type", nested, errors.ErrTypeInternal, true},
		{"other type", fetchErr, errors.ErrTypePersist, false},
		{"plain error", stderrors.New("boom"), errors.ErrTypeFetch, false},
		{"nil", nil, errors.ErrTypeFetch, false},
	}
	for _, c := range cases {
		if got := errors.IsType(c.err, c.typ); got != c.want {
			t.Errorf("%s: IsType(%v, %s) = %v, want %v", c.name, c.err, c.typ, got, c.want)
		}
	}
}

func TestNew_StackFromMessageWhenNoCause(t *testing.T) {
	err := errors.InvalidInput("limit must be positive", nil)
	stack := string(err.StackTrace())
	if stack == "" {
		t.Fatal("expected a captured stack trace")
	}
	if !strings.Contains(stack, "internal/errors/errors.go") {
		t.Errorf("stack should start at the constructor, got:\n%s", stack)
	}
}
