package continuation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("secret")
	reqID, prodID := uuid.NewString(), uuid.NewString()

	token := s.Sign(reqID, prodID)
	assert.LessOrEqual(t, len("note:"+token), 100, "must fit a Discord custom ID")

	gotReq, gotProd, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, reqID, gotReq)
	assert.Equal(t, prodID, gotProd)
}

func TestSigner_RejectsTampering(t *testing.T) {
	s := NewSigner("secret")
	token := s.Sign("req-1", "prod-1")

	swapped := strings.Replace(token, "prod-1", "prod-2", 1)
	_, _, err := s.Verify(swapped)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	_, _, err = NewSigner("other").Verify(token)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	for _, bad := range []string{"", "a.b", "a..sig", "a.b.c.d"} {
		_, _, err = s.Verify(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidToken, bad)
	}
}
