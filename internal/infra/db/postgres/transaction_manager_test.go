//go:build !integration

package postgres

import (
	"errors"
	"testing"

	"signals-platform/internal/domain"
)

func TestGetExecutor(t *testing.T) {
	t.Run("nil tx without a pool is an invalid argument", func(t *testing.T) {
		if _, err := getExecutor(nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("foreign handle is rejected", func(t *testing.T) {
		if _, err := getExecutor(nil, "not-a-tx"); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Errorf("expected ErrInvalidExecContext, got %v", err)
		}
	})
}
