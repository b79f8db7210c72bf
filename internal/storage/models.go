package storage

import "time"

// GuildSettings stores per-server configuration
type GuildSettings struct {
	GuildID         string           `json:"-"`
	Channels        ChannelSettings  `json:"channels"`
	Roles           RoleSettings     `json:"roles"`
	Features        FeatureSettings  `json:"features"`
	Cooldowns       CooldownSettings `json:"cooldowns"`
	Review          ReviewSettings   `json:"review"`
	DefaultLanguage string           `json:"defaultLanguage"`
	LastUpdatedBy   string           `json:"lastUpdatedBy"`
	CreatedAt       time.Time        `json:"-"`
	UpdatedAt       time.Time        `json:"-"`
}

// ChannelSettings routes each notification class. Empty means not configured.
type ChannelSettings struct {
	StaffReviewChannel string `json:"staffReviewChannel"`
	ReviewsChannel     string `json:"reviewsChannel"`
	LogsChannel        string `json:"logsChannel"`
}

type RoleSettings struct {
	StaffRole string `json:"staffRole"`
}

type FeatureSettings struct {
	AllowAnonymous  bool `json:"allowAnonymous"`
	EnableCooldowns bool `json:"enableCooldowns"`
	// AutoApproval and AllowReviewEdits are stored and shown but not acted on.
	AutoApproval     bool `json:"autoApproval"`
	AllowReviewEdits bool `json:"allowReviewEdits"`
}

// CooldownSettings holds durations in milliseconds.
type CooldownSettings struct {
	ReviewRequest    int64 `json:"reviewRequest"`
	ReviewSubmission int64 `json:"reviewSubmission"`
}

func (c CooldownSettings) RequestDuration() time.Duration {
	return time.Duration(c.ReviewRequest) * time.Millisecond
}

func (c CooldownSettings) SubmissionDuration() time.Duration {
	return time.Duration(c.ReviewSubmission) * time.Millisecond
}

type ReviewSettings struct {
	MinTextLength int `json:"minTextLength"`
	MaxTextLength int `json:"maxTextLength"`
	MinRating     int `json:"minRating"`
	MaxRating     int `json:"maxRating"`
	// MaxReviewsPerUser of nil means unlimited
	MaxReviewsPerUser *int `json:"maxReviewsPerUser"`
}

// UserCooldown tracks the last request/submission of a user in a guild
type UserCooldown struct {
	GuildID              string
	UserID               string
	LastReviewRequest    *time.Time
	LastReviewSubmission *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Product is a reviewable catalog item. ReviewCount, AverageRating and
// TotalRatingSum are derived from reviews by RecomputeAggregates.
type Product struct {
	ID             string
	GuildID        string
	Name           string
	Description    string
	Price          float64
	ReviewCount    int
	AverageRating  float64
	TotalRatingSum int
	CreatedBy      string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// ReviewRequest is a user's request for permission to post a review
type ReviewRequest struct {
	ID                string
	GuildID           string
	UserID            string
	RequesterUsername string
	RequestMessageID  string
	RequestChannelID  string
	ProductID         string // set on approval
	Status            RequestStatus
	StaffMemberID     string
	StaffNote         string
	DenialReason      string // set on denial
	ReviewID          string // set once the approval has been used to submit
	CreatedAt         time.Time
	ProcessedAt       *time.Time
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewDenied   ReviewStatus = "denied"
	ReviewDeleted  ReviewStatus = "deleted"
)

// Review is a submitted rating and text for a product
type Review struct {
	ID               string
	GuildID          string
	ProductID        string
	UserID           string
	ReviewerUsername string
	Text             string
	Rating           int
	SubmittedAt      time.Time
	StaffApproverID  string
	Status           ReviewStatus
	MessageID        string
	ChannelID        string
	Anonymous        bool
	LastEditedBy     string
	LastEditedAt     *time.Time
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsDeleted reports whether the review is excluded from aggregates and listings.
func (r *Review) IsDeleted() bool {
	return r.DeletedAt != nil || r.Status == ReviewDeleted
}

type ActionType string

const (
	ActionApprove       ActionType = "approve"
	ActionDeny          ActionType = "deny"
	ActionEdit          ActionType = "edit"
	ActionDelete        ActionType = "delete"
	ActionProductCreate ActionType = "product_create"
	ActionProductEdit   ActionType = "product_edit"
	ActionProductDelete ActionType = "product_delete"
)

type TargetType string

const (
	TargetReview        TargetType = "review"
	TargetReviewRequest TargetType = "review_request"
	TargetProduct       TargetType = "product"
	TargetNone          TargetType = "none"
)

// StaffAction is one append-only audit row
type StaffAction struct {
	ID                  string
	GuildID             string
	StaffMemberID       string
	StaffMemberUsername string
	ActionType          ActionType
	TargetType          TargetType
	TargetID            string
	Metadata            map[string]any
	ProcessingTime      *time.Duration // approve/deny only
	CreatedAt           time.Time
}

// StaffActionCount is one (staff member, action type) group of the audit log
type StaffActionCount struct {
	StaffMemberID       string
	StaffMemberUsername string
	ActionType          ActionType
	Count               int
	AvgProcessingMs     *float64
}

// RatingStats is the aggregate over qualifying reviews
type RatingStats struct {
	Count int
	Sum   int
}
