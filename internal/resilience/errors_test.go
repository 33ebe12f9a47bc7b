package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped", fmt.Errorf("call: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"regular", errors.New("invalid input"), false},
		{"reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"timeout", &net.DNSError{IsTimeout: true}, true},
		{"pattern", errors.New("read: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d not to be transient", code)
		}
	}
}

func TestHTTPStatusError(t *testing.T) {
	err := HTTPStatusError("mistral", 503, []byte(" busy "))
	if !IsTransient(err) {
		t.Error("expected 503 to be transient")
	}
	if !strings.Contains(err.Error(), "mistral: status 503: busy") {
		t.Errorf("unexpected message %q", err.Error())
	}

	err = HTTPStatusError("mistral", 401, []byte(strings.Repeat("x", 1000)))
	if IsTransient(err) {
		t.Error("expected 401 to be permanent")
	}
	if len(err.Error()) > 300 {
		t.Errorf("expected body to be truncated, got %d chars", len(err.Error()))
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)
	if !errors.Is(te, inner) {
		t.Error("expected errors.Is to find inner error")
	}
	if te.Error() != "root cause" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
