package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// discordNotifier renders workflow events as Discord messages
type discordNotifier struct {
	session  *discordgo.Session
	settings *settings.Store
}

func newDiscordNotifier(session *discordgo.Session, settingsStore *settings.Store) *discordNotifier {
	return &discordNotifier{session: session, settings: settingsStore}
}

func requestControls(requestID string, locked bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
					CustomID: customID(idApprove, requestID),
					Disabled: locked,
				},
				discordgo.Button{
					Label:    "Deny",
					Style:    discordgo.DangerButton,
					CustomID: customID(idDeny, requestID),
					Disabled: locked,
				},
			},
		},
	}
}

func (n *discordNotifier) PostRequest(ctx context.Context, channelID string, req *storage.ReviewRequest) (string, error) {
	msg, err := n.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{requestEmbed(req)},
		Components: requestControls(req.ID, false),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to post review request: %w", err)
	}
	return msg.ID, nil
}

func (n *discordNotifier) RetractRequest(ctx context.Context, channelID, messageID string) error {
	return n.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (n *discordNotifier) MarkRequestApproved(ctx context.Context, req *storage.ReviewRequest, product *storage.Product, staff access.Actor) error {
	return n.lockRequest(ctx, req, approvedRequestEmbed(req, product, staff.ID))
}

func (n *discordNotifier) MarkRequestDenied(ctx context.Context, req *storage.ReviewRequest, staff access.Actor) error {
	return n.lockRequest(ctx, req, deniedRequestEmbed(req, staff.ID))
}

func (n *discordNotifier) lockRequest(ctx context.Context, req *storage.ReviewRequest, embed *discordgo.MessageEmbed) error {
	if req.RequestMessageID == "" {
		return nil
	}
	components := requestControls(req.ID, true)
	edit := discordgo.NewMessageEdit(req.RequestChannelID, req.RequestMessageID).
		SetEmbeds([]*discordgo.MessageEmbed{embed})
	edit.Components = &components
	_, err := n.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (n *discordNotifier) InviteSubmission(ctx context.Context, req *storage.ReviewRequest, product *storage.Product) error {
	return n.directMessage(ctx, req.UserID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{invitationEmbed(product)},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Submit Review",
						Style:    discordgo.PrimaryButton,
						CustomID: customID(idSubmitButton, req.GuildID, req.ID),
					},
				},
			},
		},
	})
}

func (n *discordNotifier) NotifyDenial(ctx context.Context, req *storage.ReviewRequest, _ access.Actor) error {
	return n.directMessage(ctx, req.UserID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{denialEmbed(req)},
	})
}

func (n *discordNotifier) directMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	ch, err := n.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	_, err = n.session.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx))
	return err
}

func (n *discordNotifier) PostReview(ctx context.Context, channelID string, review *storage.Review, product *storage.Product) (string, error) {
	msg, err := n.session.ChannelMessageSendEmbed(channelID, reviewEmbed(review, product, n.maxRating(ctx, review.GuildID)), discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (n *discordNotifier) UpdateReviewPost(ctx context.Context, review *storage.Review, product *storage.Product) error {
	edit := discordgo.NewMessageEdit(review.ChannelID, review.MessageID).
		SetEmbeds([]*discordgo.MessageEmbed{reviewEmbed(review, product, n.maxRating(ctx, review.GuildID))})
	_, err := n.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (n *discordNotifier) DeleteReviewPost(ctx context.Context, review *storage.Review) error {
	return n.session.ChannelMessageDelete(review.ChannelID, review.MessageID, discordgo.WithContext(ctx))
}

func (n *discordNotifier) LogAction(ctx context.Context, channelID string, action *storage.StaffAction, summary string) error {
	_, err := n.session.ChannelMessageSendEmbed(channelID, logEmbed(action, summary), discordgo.WithContext(ctx))
	return err
}

func (n *discordNotifier) maxRating(ctx context.Context, guildID string) int {
	gs, err := n.settings.Get(ctx, guildID)
	if err != nil || gs.Review.MaxRating <= 0 {
		return 5
	}
	return gs.Review.MaxRating
}
