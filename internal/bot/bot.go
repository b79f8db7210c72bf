package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/config"
	"github.com/lollopanta/simpleReviewBot/internal/continuation"
	"github.com/lollopanta/simpleReviewBot/internal/cooldown"
	"github.com/lollopanta/simpleReviewBot/internal/product"
	"github.com/lollopanta/simpleReviewBot/internal/reconciler"
	"github.com/lollopanta/simpleReviewBot/internal/server"
	"github.com/lollopanta/simpleReviewBot/internal/settings"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/lollopanta/simpleReviewBot/internal/workflow"
)

// interactionTimeout bounds the work done for a single interaction
const interactionTimeout = 10 * time.Second

var _ workflow.Notifier = (*discordNotifier)(nil)

// Bot represents the Discord bot instance
type Bot struct {
	config     *config.Config
	session    *discordgo.Session
	repo       *storage.Repository
	settings   *settings.Store
	products   *product.Registry
	audit      *audit.Log
	workflow   *workflow.Service
	reconciler *reconciler.Reconciler
	server     *server.Server
	commands   []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	settingsStore := settings.NewStore(repo, time.Duration(cfg.SettingsCacheTTLSeconds)*time.Second)
	auditLog := audit.NewLog(repo)
	products := product.NewRegistry(repo, settingsStore, auditLog)

	b := &Bot{
		config:   cfg,
		session:  session,
		repo:     repo,
		settings: settingsStore,
		products: products,
		audit:    auditLog,
		workflow: workflow.New(
			repo,
			settingsStore,
			cooldown.NewTracker(repo, settingsStore),
			products,
			auditLog,
			continuation.NewSigner(cfg.ContinuationSecret),
			newDiscordNotifier(session, settingsStore),
		),
	}
	b.reconciler = reconciler.New(products, b.guildIDs, cfg.AggregateRefreshSeconds)
	if cfg.HTTPAddr != "" {
		b.server = server.New(cfg.HTTPAddr, products, auditLog, b.workflow)
	}

	// Register event handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the aggregate reconciler
	go b.reconciler.Start(ctx)

	if b.server != nil {
		b.server.Start()
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	if b.reconciler != nil {
		b.reconciler.Stop()
	}

	if b.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.server.Shutdown(ctx); err != nil {
			slog.Error("Failed to stop ops server", "error", err)
		}
	}

	// Remove registered commands (optional - comment out to keep commands)
	// b.removeCommands()

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// guildIDs lists the guilds the session currently serves
func (b *Bot) guildIDs() []string {
	b.session.State.RLock()
	defer b.session.State.RUnlock()

	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, g := range b.session.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction routes commands, buttons, menus and modals
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	if i.GuildID == "" {
		respondEmbed(s, i, errorEmbed("This command can only be used in a server."))
		return
	}

	switch data.Name {
	case "request-review":
		b.handleRequestReview(s, i)
	case "product":
		b.handleProduct(s, i)
	case "edit-review":
		b.handleEditReview(s, i)
	case "delete-review":
		b.handleDeleteReview(s, i)
	case "view-reviews":
		b.handleViewReviews(s, i)
	case "stats":
		b.handleStats(s, i)
	case "settings":
		b.handleSettings(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	kind, args := parseCustomID(data.CustomID)
	slog.Debug("Received component", "kind", kind, "guild", i.GuildID)

	switch kind {
	case idApprove:
		b.handleApproveButton(s, i, firstArg(args))
	case idDeny:
		b.handleDenyButton(s, i, firstArg(args))
	case idPickProduct:
		b.handleProductPicked(s, i, firstArg(args), data.Values)
	case idSubmitButton:
		if len(args) != 2 {
			respondEmbed(s, i, errorEmbed("This button is no longer valid."))
			return
		}
		b.handleSubmitButton(s, i, args[0], args[1])
	default:
		slog.Warn("Unknown component", "customID", data.CustomID)
	}
}

func (b *Bot) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	kind, args := parseCustomID(data.CustomID)
	slog.Debug("Received modal", "kind", kind, "guild", i.GuildID)

	switch kind {
	case idApproveNote:
		b.handleApproveNoteModal(s, i, data, firstArg(args))
	case idDenyReason:
		b.handleDenyReasonModal(s, i, data, firstArg(args))
	case idSubmitModal:
		if len(args) != 2 {
			respondEmbed(s, i, errorEmbed("This form is no longer valid."))
			return
		}
		b.handleSubmitModal(s, i, data, args[0], args[1])
	case idEditModal:
		b.handleEditReviewModal(s, i, data, firstArg(args))
	default:
		slog.Warn("Unknown modal", "customID", data.CustomID)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), interactionTimeout)
}
