package bot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "You do not have permission to do that.", errorMessage(apperr.ErrForbidden))
	assert.Equal(t, "Not found.", errorMessage(apperr.ErrNotFound))
	assert.Equal(t, "You already have a pending review request.", errorMessage(apperr.ErrDuplicatePendingRequest))
	assert.Equal(t,
		"Cooldown is still active: you can request another review in 2h 0m.",
		errorMessage(fmt.Errorf("%w: you can request another review in 2h 0m", apperr.ErrCooldownActive)))
	assert.Equal(t,
		"An error occurred while processing your request. Please try again.",
		errorMessage(errors.New("database is locked")))
}

func TestActorFrom(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "u1", Username: "mod"},
			Roles:       []string{"r1"},
			Permissions: discordgo.PermissionAdministrator,
		},
	}}
	actor := actorFrom(i)
	assert.Equal(t, "u1", actor.ID)
	assert.True(t, actor.Administrator)
	assert.Equal(t, []string{"r1"}, actor.RoleIDs)

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "u2", Username: "buyer"}}}
	actor = actorFrom(dm)
	assert.Equal(t, "u2", actor.ID)
	assert.False(t, actor.Administrator)
}

func TestModalValue(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: "denyr:req-1",
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: inputReason, Value: "  spam  "},
			}},
		},
	}
	assert.Equal(t, "spam", modalValue(data, inputReason))
	assert.Empty(t, modalValue(data, inputNote))
}
