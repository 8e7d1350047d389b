package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeInsufficientEnergy, "have %d, need %d", 5, 10)
	if !errors.Is(err, ErrInsufficientEnergy) {
		t.Fatal("expected errors.Is to match the sentinel")
	}
	if errors.Is(err, ErrInsufficientBalance) {
		t.Fatal("different code must not match")
	}

	wrapped := fmt.Errorf("tap: %w", err)
	if !errors.Is(wrapped, ErrInsufficientEnergy) {
		t.Fatal("expected match through fmt wrapping")
	}
	if got := MessageOf(wrapped); got != "have 5, need 10" {
		t.Errorf("MessageOf: got %q", got)
	}
}

func TestStoreClassifiesOnce(t *testing.T) {
	raw := errors.New("connection refused")
	err := Store(raw, "apply tap delta")
	if CodeOf(err) != CodeStoreUnavailable {
		t.Fatalf("got code %s", CodeOf(err))
	}
	if !errors.Is(err, raw) {
		t.Error("cause should stay reachable")
	}

	classified := New(CodeNotFound, "account not found")
	if Store(classified, "get") != error(classified) {
		t.Error("already classified errors must pass through")
	}
	if Store(nil, "noop") != nil {
		t.Error("nil stays nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:         http.StatusBadRequest,
		CodeInsufficientEnergy:   http.StatusBadRequest,
		CodeUnauthorized:         http.StatusUnauthorized,
		CodeInvalidSignature:     http.StatusForbidden,
		CodeCooldownActive:       http.StatusConflict,
		CodeRateLimited:          http.StatusTooManyRequests,
		CodeExternalPayoutFailed: http.StatusBadGateway,
		CodeStoreUnavailable:     http.StatusServiceUnavailable,
		CodeInternal:             http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Errorf("%s: got %d, want %d", code, got, want)
		}
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Error("unclassified errors are INTERNAL")
	}
}

func TestResponseDetailOnlyWhenAsked(t *testing.T) {
	err := Wrap(CodeStoreUnavailable, errors.New("dial tcp: refused"), "get account failed")

	status, body := Response(err, false)
	if status != http.StatusServiceUnavailable || body.Detail != "" {
		t.Errorf("production response leaked detail: %d %+v", status, body)
	}
	_, body = Response(err, true)
	if body.Detail == "" || body.Error != "get account failed" {
		t.Errorf("dev response: %+v", body)
	}
}
