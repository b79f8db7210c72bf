package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("create request: %w", ErrDuplicatePendingRequest)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, KindForbidden, KindOf(ErrForbidden))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("x: %w", ErrChannelNotConfigured)))
	assert.Equal(t, KindValidation, KindOf(ErrInvalidRating))
	assert.Equal(t, KindInternal, KindOf(errors.New("disk on fire")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("wait 2h: %w", ErrCooldownActive)

	assert.ErrorIs(t, wrapped, ErrCooldownActive)
	assert.NotErrorIs(t, wrapped, ErrAlreadyProcessed)
}
