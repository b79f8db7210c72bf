// Package continuation signs the state carried between the steps of the
// two-phase approval flow.
package continuation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/lollopanta/simpleReviewBot/internal/apperr"
)

const (
	separator = "."
	sigBytes  = 8
)

// Signer creates and verifies approval continuation tokens
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns a token binding a request to the product chosen for it.
// A token for two UUIDs is 85 characters.
func (s *Signer) Sign(requestID, productID string) string {
	payload := requestID + separator + productID
	return payload + separator + s.mac(payload)
}

// Verify recovers the request and product from a token
func (s *Signer) Verify(token string) (requestID, productID string, err error) {
	parts := strings.Split(token, separator)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.ErrInvalidToken
	}

	payload := parts[0] + separator + parts[1]
	if !hmac.Equal([]byte(s.mac(payload)), []byte(parts[2])) {
		return "", "", apperr.ErrInvalidToken
	}
	return parts[0], parts[1], nil
}

func (s *Signer) mac(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:sigBytes])
}
