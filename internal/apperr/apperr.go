// Package apperr defines the failure taxonomy shared by the review workflow.
package apperr

import "errors"

// Kind classifies an error for the user-facing message it should produce.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a classified workflow failure. Values are compared by Code so a
// sentinel matches any wrapped copy of itself.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation
var (
	ErrInvalidRating     = newError(KindValidation, "invalid_rating", "rating is out of range")
	ErrInvalidTextLength = newError(KindValidation, "invalid_text_length", "review text length is out of range")
	ErrMissingReason     = newError(KindValidation, "missing_reason", "a reason is required")
	ErrInvalidInput      = newError(KindValidation, "invalid_input", "invalid input")
	ErrInvalidToken      = newError(KindValidation, "invalid_token", "interaction token is invalid or has been tampered with")
)

// Conflict
var (
	ErrCooldownActive          = newError(KindConflict, "cooldown_active", "cooldown is still active")
	ErrDuplicatePendingRequest = newError(KindConflict, "duplicate_pending_request", "you already have a pending review request")
	ErrMaxReviewsReached       = newError(KindConflict, "max_reviews_reached", "maximum number of reviews reached")
	ErrAlreadyProcessed        = newError(KindConflict, "already_processed", "review request has already been processed")
	ErrDuplicateName           = newError(KindConflict, "duplicate_name", "a product with this name already exists")
	ErrAlreadyDeleted          = newError(KindConflict, "already_deleted", "review has already been deleted")
)

// Not found
var (
	ErrNotFound             = newError(KindNotFound, "not_found", "not found")
	ErrChannelNotConfigured = newError(KindNotFound, "channel_not_configured", "channel is not configured")
	ErrNoProductsAvailable  = newError(KindNotFound, "no_products_available", "no products available")
	ErrMissingProduct       = newError(KindNotFound, "missing_product", "review request has no associated product")
	ErrNoApprovedRequest    = newError(KindNotFound, "no_approved_request", "you do not have an approved review request")
)

// ErrForbidden is returned when the actor lacks staff or administrator capability.
var ErrForbidden = newError(KindForbidden, "forbidden", "you do not have permission to do that")

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
