package workflow

import (
	"context"

	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// Notifier renders workflow events on the chat platform. Only PostRequest
// failures abort a workflow step; every other call is best-effort.
type Notifier interface {
	// PostRequest posts the staff notification with approve/deny controls
	// and returns its message ID.
	PostRequest(ctx context.Context, channelID string, req *storage.ReviewRequest) (string, error)
	RetractRequest(ctx context.Context, channelID, messageID string) error
	MarkRequestApproved(ctx context.Context, req *storage.ReviewRequest, product *storage.Product, staff access.Actor) error
	MarkRequestDenied(ctx context.Context, req *storage.ReviewRequest, staff access.Actor) error

	// InviteSubmission tells the requester they may submit, with a trigger
	// bound to the approved request.
	InviteSubmission(ctx context.Context, req *storage.ReviewRequest, product *storage.Product) error
	NotifyDenial(ctx context.Context, req *storage.ReviewRequest, staff access.Actor) error

	PostReview(ctx context.Context, channelID string, review *storage.Review, product *storage.Product) (string, error)
	UpdateReviewPost(ctx context.Context, review *storage.Review, product *storage.Product) error
	DeleteReviewPost(ctx context.Context, review *storage.Review) error

	LogAction(ctx context.Context, channelID string, action *storage.StaffAction, summary string) error
}
