package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lollopanta/simpleReviewBot/internal/access"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/product"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

const (
	defaultStatsDays   = 30
	maxCooldownHours   = 168
	reviewListLimit    = 10
	topProductsLimit   = 10
	recentStaffActions = 5
)

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func choices(values ...string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, len(values))
	for idx, v := range values {
		out[idx] = &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v}
	}
	return out
}

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	minZero := 0.0
	minOne := 1.0
	textChannels := []discordgo.ChannelType{discordgo.ChannelTypeGuildText}

	productID := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "id",
		Description: "Product ID",
		Required:    true,
	}
	reviewID := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "review-id",
		Description: "Review ID",
		Required:    true,
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "request-review",
			Description: "Ask staff for permission to review a product",
		},
		{
			Name:        "product",
			Description: "Manage the product catalog",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Add a product",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Product name", Required: true, MaxLength: product.MaxNameLength},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Product description", MaxLength: product.MaxDescriptionLength},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionNumber, Name: "price", Description: "Price", MinValue: &minZero},
				),
				subcommand("edit", "Edit a product",
					productID,
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "New name", MaxLength: product.MaxNameLength},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "New description", MaxLength: product.MaxDescriptionLength},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionNumber, Name: "price", Description: "New price", MinValue: &minZero},
				),
				subcommand("delete", "Remove a product from the catalog", productID),
				subcommand("list", "List products",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionBoolean, Name: "include_inactive", Description: "Include removed products (staff only)"},
				),
				subcommand("view", "Show a product", productID),
			},
		},
		{
			Name:        "edit-review",
			Description: "Edit a published review",
			Options:     []*discordgo.ApplicationCommandOption{reviewID},
		},
		{
			Name:        "delete-review",
			Description: "Delete a published review",
			Options:     []*discordgo.ApplicationCommandOption{reviewID},
		},
		{
			Name:        "view-reviews",
			Description: "Show reviews by a user or for a product",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Reviewer"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "product", Description: "Product ID"},
			},
		},
		{
			Name:        "stats",
			Description: "Review statistics",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("overview", "Server-wide statistics"),
				subcommand("products", "Top rated products"),
				subcommand("staff", "Staff activity",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: "staff_member", Description: "Only this staff member"},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Window in days (default 30)", MinValue: &minOne, MaxValue: 365},
				),
				subcommand("user", "A user's reviews",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User (default: you)"},
				),
			},
		},
		{
			Name:        "settings",
			Description: "Configure the review bot",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("view", "Show the current configuration"),
				subcommand("channel", "Set a channel",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "type", Description: "Channel purpose", Required: true, Choices: choices("staff_review", "reviews", "logs")},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel", Required: true, ChannelTypes: textChannels},
				),
				subcommand("role", "Set the staff role",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Staff role", Required: true},
				),
				subcommand("feature", "Toggle a feature",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "feature", Description: "Feature", Required: true, Choices: choices("allowAnonymous", "enableCooldowns", "autoApproval", "allowReviewEdits")},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Enabled", Required: true},
				),
				subcommand("cooldown", "Set a cooldown",
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "type", Description: "Cooldown", Required: true, Choices: choices("reviewRequest", "reviewSubmission")},
					&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "hours", Description: "Hours (0-168)", Required: true, MinValue: &minZero, MaxValue: maxCooldownHours},
				),
			},
		},
	}
}

// registerCommands registers all slash commands with Discord. With a
// configured guild they are registered there, otherwise globally.
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands", "guild", b.config.DiscordGuildID)

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			b.config.DiscordGuildID,
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// removeCommands removes all registered slash commands
func (b *Bot) removeCommands() {
	for _, cmd := range b.commands {
		err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.config.DiscordGuildID, cmd.ID)
		if err != nil {
			slog.Error("Failed to remove command", "name", cmd.Name, "error", err)
		}
	}
}

func (b *Bot) requireStaff(ctx context.Context, guildID string, actor access.Actor) error {
	gs, err := b.settings.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if !access.IsStaff(actor, gs) {
		return apperr.ErrForbidden
	}
	return nil
}

// handleRequestReview handles the /request-review command
func (b *Bot) handleRequestReview(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(s, i)

	ctx, cancel := newContext()
	defer cancel()

	if _, err := b.workflow.CreateRequest(ctx, i.GuildID, actorFrom(i)); err != nil {
		b.editResponseError(s, i, err)
		return
	}
	b.editResponseEmbed(s, i, successEmbed("Your review request has been sent to staff. You will get a DM once it has been processed."))
}

// handleProduct handles the /product subcommands
func (b *Bot) handleProduct(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)
	actor := actorFrom(i)

	ctx, cancel := newContext()
	defer cancel()

	switch sub.Name {
	case "add":
		in := product.CreateInput{Name: opts["name"].StringValue()}
		if o, ok := opts["description"]; ok {
			in.Description = o.StringValue()
		}
		if o, ok := opts["price"]; ok {
			in.Price = o.FloatValue()
		}
		p, err := b.products.Create(ctx, i.GuildID, actor, in)
		if err != nil {
			respondError(s, i, err)
			return
		}
		respondEmbed(s, i, productEmbed(p))

	case "edit":
		var upd product.Update
		if o, ok := opts["name"]; ok {
			v := o.StringValue()
			upd.Name = &v
		}
		if o, ok := opts["description"]; ok {
			v := o.StringValue()
			upd.Description = &v
		}
		if o, ok := opts["price"]; ok {
			v := o.FloatValue()
			upd.Price = &v
		}
		p, err := b.products.Edit(ctx, i.GuildID, opts["id"].StringValue(), actor, upd)
		if err != nil {
			respondError(s, i, err)
			return
		}
		respondEmbed(s, i, productEmbed(p))

	case "delete":
		p, err := b.products.SoftDelete(ctx, i.GuildID, opts["id"].StringValue(), actor)
		if err != nil {
			respondError(s, i, err)
			return
		}
		respondEmbed(s, i, successEmbed(fmt.Sprintf("Product **%s** has been removed.", p.Name)))

	case "list":
		includeInactive := false
		if o, ok := opts["include_inactive"]; ok && o.BoolValue() {
			if err := b.requireStaff(ctx, i.GuildID, actor); err != nil {
				respondError(s, i, err)
				return
			}
			includeInactive = true
		}
		products, err := b.products.ListFresh(ctx, i.GuildID, includeInactive)
		if err != nil {
			respondError(s, i, err)
			return
		}
		if len(products) == 0 {
			respondEmbed(s, i, errorEmbed("No products have been added yet."))
			return
		}
		respondEmbed(s, i, productListEmbed(products))

	case "view":
		p, err := b.products.Get(ctx, i.GuildID, opts["id"].StringValue())
		if err != nil {
			respondError(s, i, err)
			return
		}
		if agg, err := b.products.RecomputeAggregates(ctx, p.ID); err != nil {
			slog.Warn("Failed to refresh product aggregates", "product", p.ID, "error", err)
		} else {
			p.ReviewCount, p.AverageRating, p.TotalRatingSum = agg.ReviewCount, agg.AverageRating, agg.TotalRatingSum
		}
		respondEmbed(s, i, productEmbed(p))
	}
}

// handleEditReview opens the edit form prefilled with the current review
func (b *Bot) handleEditReview(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := i.ApplicationCommandData().Options[0].StringValue()

	ctx, cancel := newContext()
	defer cancel()

	rv, err := b.workflow.EditableReview(ctx, i.GuildID, id, actorFrom(i))
	if err != nil {
		respondError(s, i, err)
		return
	}

	respondModal(s, i, customID(idEditModal, rv.ID), "Edit Review",
		discordgo.TextInput{
			CustomID: inputText,
			Label:    "Review",
			Style:    discordgo.TextInputParagraph,
			Value:    rv.Text,
			Required: true,
		},
		discordgo.TextInput{
			CustomID:  inputRating,
			Label:     "Rating",
			Style:     discordgo.TextInputShort,
			Value:     strconv.Itoa(rv.Rating),
			Required:  true,
			MaxLength: 2,
		},
	)
}

// handleDeleteReview handles the /delete-review command
func (b *Bot) handleDeleteReview(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := i.ApplicationCommandData().Options[0].StringValue()
	deferEphemeral(s, i)

	ctx, cancel := newContext()
	defer cancel()

	if _, err := b.workflow.DeleteReview(ctx, i.GuildID, id, actorFrom(i)); err != nil {
		b.editResponseError(s, i, err)
		return
	}
	b.editResponseEmbed(s, i, successEmbed(fmt.Sprintf("Review `%s` has been deleted.", id)))
}

// handleViewReviews shows a product's reviews, or a user's (default: caller)
func (b *Bot) handleViewReviews(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)

	ctx, cancel := newContext()
	defer cancel()

	if o, ok := opts["product"]; ok {
		p, reviews, err := b.workflow.ProductReviews(ctx, i.GuildID, o.StringValue(), reviewListLimit)
		if err != nil {
			respondError(s, i, err)
			return
		}
		respondEmbed(s, i, reviewListEmbed("📝 Reviews for "+p.Name, reviews))
		return
	}

	b.respondUserStats(ctx, s, i, opts)
}

func (b *Bot) respondUserStats(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	userID := actorFrom(i).ID
	if o, ok := opts["user"]; ok {
		userID = o.UserValue(nil).ID
	}
	us, err := b.workflow.UserStats(ctx, i.GuildID, userID)
	if err != nil {
		respondError(s, i, err)
		return
	}
	respondEmbed(s, i, userStatsEmbed(us))
}

// handleStats handles the /stats subcommands. Everything but user stats is staff only.
func (b *Bot) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	ctx, cancel := newContext()
	defer cancel()

	if sub.Name == "user" {
		b.respondUserStats(ctx, s, i, opts)
		return
	}
	if err := b.requireStaff(ctx, i.GuildID, actorFrom(i)); err != nil {
		respondError(s, i, err)
		return
	}

	switch sub.Name {
	case "overview":
		o, err := b.workflow.GuildOverview(ctx, i.GuildID)
		if err != nil {
			respondError(s, i, err)
			return
		}
		respondEmbed(s, i, overviewEmbed(o))

	case "products":
		products, err := b.products.ListFresh(ctx, i.GuildID, false)
		if err != nil {
			respondError(s, i, err)
			return
		}
		embed := productListEmbed(topProducts(products, topProductsLimit))
		embed.Title = "🏆 Top Products"
		respondEmbed(s, i, embed)

	case "staff":
		days := defaultStatsDays
		if o, ok := opts["days"]; ok {
			days = int(o.IntValue())
		}
		var staffID string
		if o, ok := opts["staff_member"]; ok {
			staffID = o.UserValue(nil).ID
		}
		stats, err := b.audit.StatsFor(ctx, i.GuildID, staffID, days)
		if err != nil {
			respondError(s, i, err)
			return
		}
		recent, err := b.audit.Recent(ctx, i.GuildID, staffID, recentStaffActions)
		if err != nil {
			respondError(s, i, err)
			return
		}
		respondEmbed(s, i, staffStatsEmbed(stats, days, recent))
	}
}

// topProducts orders products by average rating, then review count, and
// keeps the first n
func topProducts(products []*storage.Product, n int) []*storage.Product {
	ranked := make([]*storage.Product, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(a, c int) bool {
		if ranked[a].AverageRating != ranked[c].AverageRating {
			return ranked[a].AverageRating > ranked[c].AverageRating
		}
		return ranked[a].ReviewCount > ranked[c].ReviewCount
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// handleSettings handles the /settings subcommands (administrators only)
func (b *Bot) handleSettings(s *discordgo.Session, i *discordgo.InteractionCreate) {
	actor := actorFrom(i)
	if !actor.Administrator {
		respondError(s, i, apperr.ErrForbidden)
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	ctx, cancel := newContext()
	defer cancel()

	if sub.Name == "view" {
		gs, err := b.settings.Get(ctx, i.GuildID)
		if err != nil {
			respondError(s, i, err)
			return
		}
		respondEmbed(s, i, settingsEmbed(gs))
		return
	}

	upd, err := settingsUpdate(sub.Name, opts)
	if err != nil {
		respondError(s, i, err)
		return
	}
	gs, err := b.settings.Update(ctx, i.GuildID, upd, actor.ID)
	if err != nil {
		respondError(s, i, err)
		return
	}
	respondEmbed(s, i, settingsEmbed(gs))
}

// settingsUpdate translates a /settings subcommand into a partial update
func settingsUpdate(name string, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (settings.Update, error) {
	var upd settings.Update

	switch name {
	case "channel":
		id := opts["channel"].ChannelValue(nil).ID
		var ch settings.ChannelsUpdate
		switch opts["type"].StringValue() {
		case "staff_review":
			ch.StaffReviewChannel = &id
		case "reviews":
			ch.ReviewsChannel = &id
		case "logs":
			ch.LogsChannel = &id
		default:
			return upd, fmt.Errorf("%w: unknown channel type", apperr.ErrInvalidInput)
		}
		upd.Channels = &ch

	case "role":
		id := opts["role"].RoleValue(nil, "").ID
		upd.Roles = &settings.RolesUpdate{StaffRole: &id}

	case "feature":
		enabled := opts["enabled"].BoolValue()
		var f settings.FeaturesUpdate
		switch opts["feature"].StringValue() {
		case "allowAnonymous":
			f.AllowAnonymous = &enabled
		case "enableCooldowns":
			f.EnableCooldowns = &enabled
		case "autoApproval":
			f.AutoApproval = &enabled
		case "allowReviewEdits":
			f.AllowReviewEdits = &enabled
		default:
			return upd, fmt.Errorf("%w: unknown feature", apperr.ErrInvalidInput)
		}
		upd.Features = &f

	case "cooldown":
		hours := opts["hours"].IntValue()
		if hours < 0 || hours > maxCooldownHours {
			return upd, fmt.Errorf("%w: hours must be between 0 and %d", apperr.ErrInvalidInput, maxCooldownHours)
		}
		ms := (time.Duration(hours) * time.Hour).Milliseconds()
		var c settings.CooldownsUpdate
		switch opts["type"].StringValue() {
		case "reviewRequest":
			c.ReviewRequest = &ms
		case "reviewSubmission":
			c.ReviewSubmission = &ms
		default:
			return upd, fmt.Errorf("%w: unknown cooldown", apperr.ErrInvalidInput)
		}
		upd.Cooldowns = &c

	default:
		return upd, fmt.Errorf("%w: unknown setting", apperr.ErrInvalidInput)
	}
	return upd, nil
}
