package bot

import (
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
)

// actorFrom extracts who triggered an interaction. Outside a guild only the
// user is known and they are never staff.
func actorFrom(i *discordgo.InteractionCreate) access.Actor {
	if i.Member != nil && i.Member.User != nil {
		return access.Actor{
			ID:            i.Member.User.ID,
			Username:      i.Member.User.Username,
			Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
			RoleIDs:       i.Member.Roles,
		}
	}
	if i.User != nil {
		return access.Actor{ID: i.User.ID, Username: i.User.Username}
	}
	return access.Actor{}
}

// errorMessage turns a workflow error into what the user is shown
func errorMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindForbidden:
		return "You do not have permission to do that."
	case apperr.KindNotFound, apperr.KindConflict, apperr.KindValidation:
		msg := err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:] + "."
	default:
		return "An error occurred while processing your request. Please try again."
	}
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	respond(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
}

func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	logUnexpected(i, err)
	respondEmbed(s, i, errorEmbed(errorMessage(err)))
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

func respondModal(s *discordgo.Session, i *discordgo.InteractionCreate, id, title string, inputs ...discordgo.TextInput) {
	rows := make([]discordgo.MessageComponent, len(inputs))
	for idx, input := range inputs {
		rows[idx] = discordgo.ActionsRow{Components: []discordgo.MessageComponent{input}}
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   id,
			Title:      title,
			Components: rows,
		},
	})
	if err != nil {
		slog.Error("Failed to open modal", "modal", id, "error", err)
	}
}

// deferEphemeral acknowledges an interaction whose answer follows via
// editResponseEmbed
func deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		slog.Error("Failed to defer interaction", "error", err)
	}
}

func (b *Bot) editResponseEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &embeds,
	})
}

func (b *Bot) editResponseError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	logUnexpected(i, err)
	b.editResponseEmbed(s, i, errorEmbed(errorMessage(err)))
}

func logUnexpected(i *discordgo.InteractionCreate, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		slog.Error("Interaction failed", "guild", i.GuildID, "error", err)
	}
}

// modalValue returns the value of a text input in a submitted modal
func modalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if input, ok := rc.(*discordgo.TextInput); ok && input.CustomID == inputID {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}

// optionMap indexes command options by name
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}
