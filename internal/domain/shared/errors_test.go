package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorIs(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewDomainError("FORBIDDEN", "editor may not delete")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, "editor may not delete", err.Message)
	})

	t.Run("does not match a different code", func(t *testing.T) {
		err := NewDomainError("FORBIDDEN", "no matching grant")
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrConcurrencyConflict)
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("authorize shard: %w", NewDomainError("TRANSIENT_STORE", "redis down"))
		assert.ErrorIs(t, wrapped, ErrTransientStore)
	})

	t.Run("ignores non-domain targets", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "gone")
		assert.False(t, errors.Is(err, errors.New("NOT_FOUND")))
	})
}
