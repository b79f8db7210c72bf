package bot

import (
	"testing"
	"time"

	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestStars(t *testing.T) {
	assert.Equal(t, "⭐⭐⭐☆☆", stars(3, 5))
	assert.Equal(t, "⭐⭐⭐⭐☆", stars(4.3, 5))
	assert.Equal(t, "☆☆☆☆☆", stars(0, 5))
	assert.Equal(t, "⭐⭐⭐⭐⭐", stars(7, 5))
}

func TestReviewEmbed_Anonymous(t *testing.T) {
	rv := &storage.Review{ID: "r1", UserID: "u1", Text: "Great widget", Rating: 5, Anonymous: true, SubmittedAt: time.Now()}
	p := &storage.Product{Name: "Widget"}

	embed := reviewEmbed(rv, p, 5)
	assert.Equal(t, "Anonymous", embed.Fields[2].Value)
	assert.Equal(t, "Widget", embed.Fields[0].Value)

	rv.Anonymous = false
	embed = reviewEmbed(rv, p, 5)
	assert.Equal(t, "<@u1>", embed.Fields[2].Value)
}

func TestDeniedRequestEmbed(t *testing.T) {
	req := &storage.ReviewRequest{ID: "req-1", UserID: "u1", RequesterUsername: "buyer", DenialReason: "spam", CreatedAt: time.Now()}

	embed := deniedRequestEmbed(req, "s1")
	assert.Equal(t, colorRed, embed.Color)
	last := embed.Fields[len(embed.Fields)-1]
	assert.Equal(t, "Reason", last.Name)
	assert.Equal(t, "spam", last.Value)
}
