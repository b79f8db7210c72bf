package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/lollopanta/simpleReviewBot/internal/workflow"
)

// Discord limits
const (
	maxSelectOptions   = 25
	maxSelectLabel     = 100
	maxModalTitle      = 45
	maxNoteLength      = 500
	maxReasonLength    = 500
	maxTextInputLength = 4000
)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func messageID(i *discordgo.InteractionCreate) string {
	if i.Message == nil {
		return ""
	}
	return i.Message.ID
}

// productSelect builds the menu staff pick the reviewed product from
func productSelect(requestID string, products []*storage.Product) discordgo.SelectMenu {
	if len(products) > maxSelectOptions {
		products = products[:maxSelectOptions]
	}
	options := make([]discordgo.SelectMenuOption, len(products))
	for idx, p := range products {
		options[idx] = discordgo.SelectMenuOption{
			Label:       truncate(p.Name, maxSelectLabel),
			Value:       p.ID,
			Description: truncate(fmt.Sprintf("$%.2f", p.Price), maxSelectLabel),
		}
	}
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customID(idPickProduct, requestID),
		Placeholder: "Select the product to review",
		Options:     options,
	}
}

// parseRating reads the rating typed into a modal
func parseRating(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", apperr.ErrInvalidRating, raw)
	}
	return n, nil
}

func parseYes(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "true", "1":
		return true
	}
	return false
}

// handleApproveButton shows staff the product menu for a pending request
func (b *Bot) handleApproveButton(s *discordgo.Session, i *discordgo.InteractionCreate, requestID string) {
	ctx, cancel := newContext()
	defer cancel()

	req, err := b.workflow.ResolveRequest(ctx, i.GuildID, requestID, messageID(i))
	if err != nil {
		respondError(s, i, err)
		return
	}
	req, products, err := b.workflow.BeginApproval(ctx, i.GuildID, req.ID, actorFrom(i))
	if err != nil {
		respondError(s, i, err)
		return
	}

	respond(s, i, &discordgo.InteractionResponseData{
		Content: fmt.Sprintf("Which product will <@%s> review?", req.UserID),
		Flags:   discordgo.MessageFlagsEphemeral,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{productSelect(req.ID, products)}},
		},
	})
}

// handleProductPicked asks for the optional staff note once a product is chosen
func (b *Bot) handleProductPicked(s *discordgo.Session, i *discordgo.InteractionCreate, requestID string, values []string) {
	if len(values) == 0 {
		respondError(s, i, apperr.ErrMissingProduct)
		return
	}

	ctx, cancel := newContext()
	defer cancel()

	token, p, err := b.workflow.SelectProduct(ctx, i.GuildID, requestID, actorFrom(i), values[0])
	if err != nil {
		respondError(s, i, err)
		return
	}

	respondModal(s, i, customID(idApproveNote, token), truncate("Approve: "+p.Name, maxModalTitle),
		discordgo.TextInput{
			CustomID:  inputNote,
			Label:     "Note for the reviewer (optional)",
			Style:     discordgo.TextInputParagraph,
			MaxLength: maxNoteLength,
		},
	)
}

func (b *Bot) handleApproveNoteModal(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData, token string) {
	deferEphemeral(s, i)

	ctx, cancel := newContext()
	defer cancel()

	req, err := b.workflow.FinalizeWithToken(ctx, i.GuildID, token, actorFrom(i), modalValue(data, inputNote))
	if err != nil {
		b.editResponseError(s, i, err)
		return
	}
	b.editResponseEmbed(s, i, successEmbed(fmt.Sprintf("Request approved. <@%s> has been invited to submit their review.", req.UserID)))
}

// handleDenyButton opens the reason form for a pending request
func (b *Bot) handleDenyButton(s *discordgo.Session, i *discordgo.InteractionCreate, requestID string) {
	ctx, cancel := newContext()
	defer cancel()

	if err := b.requireStaff(ctx, i.GuildID, actorFrom(i)); err != nil {
		respondError(s, i, err)
		return
	}
	req, err := b.workflow.ResolveRequest(ctx, i.GuildID, requestID, messageID(i))
	if err != nil {
		respondError(s, i, err)
		return
	}
	if req.Status != storage.RequestPending {
		respondError(s, i, apperr.ErrAlreadyProcessed)
		return
	}

	respondModal(s, i, customID(idDenyReason, req.ID), "Deny Review Request",
		discordgo.TextInput{
			CustomID:  inputReason,
			Label:     "Reason",
			Style:     discordgo.TextInputParagraph,
			Required:  true,
			MaxLength: maxReasonLength,
		},
	)
}

func (b *Bot) handleDenyReasonModal(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData, requestID string) {
	deferEphemeral(s, i)

	ctx, cancel := newContext()
	defer cancel()

	req, err := b.workflow.Deny(ctx, i.GuildID, requestID, actorFrom(i), modalValue(data, inputReason))
	if err != nil {
		b.editResponseError(s, i, err)
		return
	}
	b.editResponseEmbed(s, i, successEmbed(fmt.Sprintf("Request from <@%s> denied.", req.UserID)))
}

// handleSubmitButton opens the review form from the invitation DM
func (b *Bot) handleSubmitButton(s *discordgo.Session, i *discordgo.InteractionCreate, guildID, requestID string) {
	ctx, cancel := newContext()
	defer cancel()

	gs, err := b.settings.Get(ctx, guildID)
	if err != nil {
		respondError(s, i, err)
		return
	}

	text := discordgo.TextInput{
		CustomID:  inputText,
		Label:     "Your review",
		Style:     discordgo.TextInputParagraph,
		Required:  true,
		MaxLength: maxTextInputLength,
	}
	if gs.Review.MinTextLength > 0 && gs.Review.MinTextLength <= maxTextInputLength {
		text.MinLength = gs.Review.MinTextLength
	}
	if gs.Review.MaxTextLength > 0 && gs.Review.MaxTextLength < maxTextInputLength {
		text.MaxLength = gs.Review.MaxTextLength
	}

	inputs := []discordgo.TextInput{
		text,
		{
			CustomID:    inputRating,
			Label:       fmt.Sprintf("Rating (%d-%d)", gs.Review.MinRating, gs.Review.MaxRating),
			Style:       discordgo.TextInputShort,
			Placeholder: strconv.Itoa(gs.Review.MaxRating),
			Required:    true,
			MaxLength:   2,
		},
	}
	if gs.Features.AllowAnonymous {
		inputs = append(inputs, discordgo.TextInput{
			CustomID:    inputAnonymous,
			Label:       "Post anonymously? (yes/no)",
			Style:       discordgo.TextInputShort,
			Placeholder: "no",
			MaxLength:   3,
		})
	}

	respondModal(s, i, customID(idSubmitModal, guildID, requestID), "Submit Review", inputs...)
}

func (b *Bot) handleSubmitModal(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData, guildID, requestID string) {
	deferEphemeral(s, i)

	rating, err := parseRating(modalValue(data, inputRating))
	if err != nil {
		b.editResponseError(s, i, err)
		return
	}

	ctx, cancel := newContext()
	defer cancel()

	actor := actorFrom(i)
	rv, err := b.workflow.Submit(ctx, workflow.SubmitInput{
		GuildID:   guildID,
		UserID:    actor.ID,
		Username:  actor.Username,
		RequestID: requestID,
		Text:      modalValue(data, inputText),
		Rating:    rating,
		Anonymous: parseYes(modalValue(data, inputAnonymous)),
	})
	if err != nil {
		b.editResponseError(s, i, err)
		return
	}
	b.editResponseEmbed(s, i, successEmbed(fmt.Sprintf("Thank you! Your review has been published. (ID: `%s`)", rv.ID)))
}

func (b *Bot) handleEditReviewModal(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData, reviewID string) {
	deferEphemeral(s, i)

	rating, err := parseRating(modalValue(data, inputRating))
	if err != nil {
		b.editResponseError(s, i, err)
		return
	}

	ctx, cancel := newContext()
	defer cancel()

	rv, err := b.workflow.EditReview(ctx, i.GuildID, reviewID, actorFrom(i), modalValue(data, inputText), rating)
	if err != nil {
		b.editResponseError(s, i, err)
		return
	}
	b.editResponseEmbed(s, i, successEmbed(fmt.Sprintf("Review `%s` has been updated.", rv.ID)))
}
