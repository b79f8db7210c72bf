package settings

import "github.com/lollopanta/simpleReviewBot/internal/storage"

// Update is a partial settings change. Nil fields are left untouched; each
// group is merged field by field into the stored configuration.
type Update struct {
	Channels        *ChannelsUpdate
	Roles           *RolesUpdate
	Features        *FeaturesUpdate
	Cooldowns       *CooldownsUpdate
	Review          *ReviewUpdate
	DefaultLanguage *string
}

// ChannelsUpdate sets channel routing. An empty string clears a channel.
type ChannelsUpdate struct {
	StaffReviewChannel *string
	ReviewsChannel     *string
	LogsChannel        *string
}

type RolesUpdate struct {
	StaffRole *string
}

type FeaturesUpdate struct {
	AllowAnonymous   *bool
	EnableCooldowns  *bool
	AutoApproval     *bool
	AllowReviewEdits *bool
}

// CooldownsUpdate holds durations in milliseconds
type CooldownsUpdate struct {
	ReviewRequest    *int64
	ReviewSubmission *int64
}

// ReviewUpdate changes submission bounds. A MaxReviewsPerUser of zero or
// less removes the cap.
type ReviewUpdate struct {
	MinTextLength     *int
	MaxTextLength     *int
	MinRating         *int
	MaxRating         *int
	MaxReviewsPerUser *int
}

func (u Update) apply(gs *storage.GuildSettings) {
	if c := u.Channels; c != nil {
		setIf(&gs.Channels.StaffReviewChannel, c.StaffReviewChannel)
		setIf(&gs.Channels.ReviewsChannel, c.ReviewsChannel)
		setIf(&gs.Channels.LogsChannel, c.LogsChannel)
	}
	if r := u.Roles; r != nil {
		setIf(&gs.Roles.StaffRole, r.StaffRole)
	}
	if f := u.Features; f != nil {
		setIf(&gs.Features.AllowAnonymous, f.AllowAnonymous)
		setIf(&gs.Features.EnableCooldowns, f.EnableCooldowns)
		setIf(&gs.Features.AutoApproval, f.AutoApproval)
		setIf(&gs.Features.AllowReviewEdits, f.AllowReviewEdits)
	}
	if c := u.Cooldowns; c != nil {
		setIf(&gs.Cooldowns.ReviewRequest, c.ReviewRequest)
		setIf(&gs.Cooldowns.ReviewSubmission, c.ReviewSubmission)
	}
	if r := u.Review; r != nil {
		setIf(&gs.Review.MinTextLength, r.MinTextLength)
		setIf(&gs.Review.MaxTextLength, r.MaxTextLength)
		setIf(&gs.Review.MinRating, r.MinRating)
		setIf(&gs.Review.MaxRating, r.MaxRating)
		if r.MaxReviewsPerUser != nil {
			if *r.MaxReviewsPerUser <= 0 {
				gs.Review.MaxReviewsPerUser = nil
			} else {
				v := *r.MaxReviewsPerUser
				gs.Review.MaxReviewsPerUser = &v
			}
		}
	}
	setIf(&gs.DefaultLanguage, u.DefaultLanguage)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
