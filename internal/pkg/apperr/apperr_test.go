// internal/pkg/apperr/apperr_test.go
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindAndStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   string
		status int
	}{
		{"validation", Validation("bad input"), "validation", http.StatusBadRequest},
		{"conflict", Conflict("stock short"), "conflict", http.StatusConflict},
		{"external", External("downstream 500"), "external", http.StatusBadGateway},
		{"reservation expired", ReservationExpired("hold gone"), "reservation_expired", http.StatusConflict},
		{"timeout", context.DeadlineExceeded, "timeout", http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), "internal", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Kind(tc.err); got != tc.kind {
				t.Errorf("Kind = %q, want %q", got, tc.kind)
			}
			if got := HTTPStatus(tc.err); got != tc.status {
				t.Errorf("HTTPStatus = %d, want %d", got, tc.status)
			}
		})
	}
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	err := fmt.Errorf("create order: %w", Conflict("cart is empty"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("wrapping must preserve the sentinel")
	}
	if Kind(err) != "conflict" {
		t.Fatalf("Kind through wrap = %q", Kind(err))
	}
}
