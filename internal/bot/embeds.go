package bot

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/lollopanta/simpleReviewBot/internal/workflow"
)

const (
	colorBlurple = 0x5865F2
	colorGreen   = 0x57F287
	colorRed     = 0xED4245
	colorYellow  = 0xFEE75C
)

// stars renders a rating as filled and empty stars
func stars(rating float64, outOf int) string {
	filled := int(math.Round(rating))
	if filled < 0 {
		filled = 0
	}
	if filled > outOf {
		filled = outOf
	}
	return strings.Repeat("⭐", filled) + strings.Repeat("☆", outOf-filled)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func requestEmbed(req *storage.ReviewRequest) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "📝 Review Request",
		Description: fmt.Sprintf("<@%s> would like to submit a review.", req.UserID),
		Color:       colorBlurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: req.RequesterUsername, Inline: true},
			{Name: "Request ID", Value: fmt.Sprintf("`%s`", req.ID), Inline: true},
		},
		Timestamp: timestamp(req.CreatedAt),
	}
}

func approvedRequestEmbed(req *storage.ReviewRequest, product *storage.Product, staffID string) *discordgo.MessageEmbed {
	embed := requestEmbed(req)
	embed.Title = "✅ Review Request - Approved"
	embed.Color = colorGreen
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Approved By", Value: fmt.Sprintf("<@%s>", staffID)},
		&discordgo.MessageEmbedField{Name: "Product", Value: product.Name},
	)
	if req.StaffNote != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Staff Note", Value: req.StaffNote})
	}
	return embed
}

func deniedRequestEmbed(req *storage.ReviewRequest, staffID string) *discordgo.MessageEmbed {
	embed := requestEmbed(req)
	embed.Title = "❌ Review Request - Denied"
	embed.Color = colorRed
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Denied By", Value: fmt.Sprintf("<@%s>", staffID)},
		&discordgo.MessageEmbedField{Name: "Reason", Value: req.DenialReason},
	)
	return embed
}

func invitationEmbed(product *storage.Product) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "✅ Review Request Approved",
		Description: fmt.Sprintf("Your review request for **%s** has been approved. Press the button below to submit your review.", product.Name),
		Color:       colorGreen,
	}
}

func denialEmbed(req *storage.ReviewRequest) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ Review Request Denied",
		Description: "Your review request has been denied.",
		Color:       colorRed,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: req.DenialReason},
		},
	}
}

func reviewEmbed(rv *storage.Review, product *storage.Product, maxRating int) *discordgo.MessageEmbed {
	reviewer := fmt.Sprintf("<@%s>", rv.UserID)
	if rv.Anonymous {
		reviewer = "Anonymous"
	}

	embed := &discordgo.MessageEmbed{
		Title:       "⭐ New Review",
		Description: rv.Text,
		Color:       colorYellow,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Product", Value: product.Name, Inline: true},
			{Name: "Rating", Value: fmt.Sprintf("%s (%d/%d)", stars(float64(rv.Rating), maxRating), rv.Rating, maxRating), Inline: true},
			{Name: "Reviewer", Value: reviewer, Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Review ID: " + rv.ID},
		Timestamp: timestamp(rv.SubmittedAt),
	}
	if rv.LastEditedAt != nil {
		embed.Footer.Text += " • edited"
	}
	return embed
}

func logEmbed(action *storage.StaffAction, summary string) *discordgo.MessageEmbed {
	color := colorBlurple
	switch action.ActionType {
	case storage.ActionApprove, storage.ActionProductCreate:
		color = colorGreen
	case storage.ActionDeny, storage.ActionDelete, storage.ActionProductDelete:
		color = colorRed
	case storage.ActionEdit, storage.ActionProductEdit:
		color = colorYellow
	}

	return &discordgo.MessageEmbed{
		Title:       "Staff Action: " + strings.ToUpper(string(action.ActionType)),
		Description: summary,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Staff Member", Value: fmt.Sprintf("<@%s>", action.StaffMemberID), Inline: true},
		},
		Timestamp: timestamp(action.CreatedAt),
	}
}

func errorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "❌ Error", Description: message, Color: colorRed}
}

func successEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "✅ Success", Description: message, Color: colorGreen}
}

func productEmbed(p *storage.Product) *discordgo.MessageEmbed {
	rating := "No reviews yet"
	if p.ReviewCount > 0 {
		rating = fmt.Sprintf("%s %.1f/5", stars(p.AverageRating, 5), p.AverageRating)
	}
	title := "📦 " + p.Name
	if !p.Active {
		title += " (inactive)"
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: p.Description,
		Color:       colorBlurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Price", Value: fmt.Sprintf("$%.2f", p.Price), Inline: true},
			{Name: "Reviews", Value: fmt.Sprintf("%d", p.ReviewCount), Inline: true},
			{Name: "Average Rating", Value: rating, Inline: true},
			{Name: "Product ID", Value: fmt.Sprintf("`%s`", p.ID)},
		},
	}
}

func productListEmbed(products []*storage.Product) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, p := range products {
		status := ""
		if !p.Active {
			status = " *(inactive)*"
		}
		sb.WriteString(fmt.Sprintf("**%s**%s - $%.2f - %.1f/5 (%d reviews)\n`%s`\n", p.Name, status, p.Price, p.AverageRating, p.ReviewCount, p.ID))
	}
	return &discordgo.MessageEmbed{
		Title:       "📦 Products",
		Description: sb.String(),
		Color:       colorBlurple,
	}
}

func reviewListEmbed(title string, reviews []*storage.Review) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, rv := range reviews {
		text := rv.Text
		if len([]rune(text)) > 100 {
			text = string([]rune(text)[:100]) + "…"
		}
		sb.WriteString(fmt.Sprintf("%s <t:%d:d>\n%s\n`%s`\n\n", stars(float64(rv.Rating), 5), rv.SubmittedAt.Unix(), text, rv.ID))
	}
	if sb.Len() == 0 {
		sb.WriteString("No reviews yet.")
	}
	return &discordgo.MessageEmbed{Title: title, Description: sb.String(), Color: colorBlurple}
}

func userStatsEmbed(us *workflow.UserStats) *discordgo.MessageEmbed {
	embed := reviewListEmbed("📊 Reviews", us.Recent)
	embed.Description = fmt.Sprintf("<@%s>\n\n%s", us.UserID, embed.Description)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Total Reviews", Value: fmt.Sprintf("%d", us.ReviewCount), Inline: true},
		{Name: "Average Rating", Value: fmt.Sprintf("%s %.1f/5", stars(us.AverageRating, 5), us.AverageRating), Inline: true},
	}
	return embed
}

func overviewEmbed(o *workflow.GuildOverview) *discordgo.MessageEmbed {
	processed := o.RequestsByStatus[storage.RequestApproved] + o.RequestsByStatus[storage.RequestDenied]
	rate := "N/A"
	if processed > 0 {
		rate = fmt.Sprintf("%.1f%%", o.ApprovalRate)
	}
	total := 0
	for _, n := range o.RequestsByStatus {
		total += n
	}

	return &discordgo.MessageEmbed{
		Title: "📊 Statistics",
		Color: colorBlurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total Reviews", Value: fmt.Sprintf("%d", o.TotalReviews), Inline: true},
			{Name: "Average Rating", Value: fmt.Sprintf("%.1f/5", o.AverageRating), Inline: true},
			{Name: "Products", Value: fmt.Sprintf("%d", o.ActiveProducts), Inline: true},
			{Name: "Total Requests", Value: fmt.Sprintf("%d", total), Inline: true},
			{Name: "Pending Requests", Value: fmt.Sprintf("%d", o.RequestsByStatus[storage.RequestPending]), Inline: true},
			{Name: "Approval Rate", Value: rate, Inline: true},
		},
	}
}

func staffStatsEmbed(stats []audit.StaffStats, days int, recent []*storage.StaffAction) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("👮 Staff Activity (last %d days)", days),
		Color: colorBlurple,
	}
	if len(stats) == 0 {
		embed.Description = "No staff actions in this period."
		return embed
	}

	var sb strings.Builder
	for idx, s := range stats {
		sb.WriteString(fmt.Sprintf("%d. <@%s> - %d actions (%d approvals, %d denials, %d edits, %d deletes)",
			idx+1, s.StaffMemberID, s.TotalActions,
			s.Count(storage.ActionApprove), s.Count(storage.ActionDeny),
			s.Count(storage.ActionEdit), s.Count(storage.ActionDelete)))
		if s.AvgApprovalTime != nil {
			sb.WriteString(", avg approval " + audit.FormatDuration(*s.AvgApprovalTime))
		}
		sb.WriteString("\n")
	}
	embed.Description = sb.String()

	if len(recent) > 0 {
		var lines []string
		for _, a := range recent {
			lines = append(lines, fmt.Sprintf("<t:%d:R> %s %s `%s`", a.CreatedAt.Unix(), a.ActionType, a.TargetType, a.TargetID))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Recent Actions", Value: strings.Join(lines, "\n")})
	}
	return embed
}

func settingsEmbed(gs *storage.GuildSettings) *discordgo.MessageEmbed {
	channel := func(id string) string {
		if id == "" {
			return "not set"
		}
		return fmt.Sprintf("<#%s>", id)
	}
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	features := map[string]bool{
		"Anonymous Reviews": gs.Features.AllowAnonymous,
		"Cooldowns":         gs.Features.EnableCooldowns,
		"Auto-Approval":     gs.Features.AutoApproval,
		"Review Edits":      gs.Features.AllowReviewEdits,
	}
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	var fl []string
	for _, name := range names {
		fl = append(fl, fmt.Sprintf("%s: %s", name, onOff(features[name])))
	}

	staffRole := "not set"
	if gs.Roles.StaffRole != "" {
		staffRole = fmt.Sprintf("<@&%s>", gs.Roles.StaffRole)
	}
	maxReviews := "unlimited"
	if gs.Review.MaxReviewsPerUser != nil {
		maxReviews = fmt.Sprintf("%d", *gs.Review.MaxReviewsPerUser)
	}

	return &discordgo.MessageEmbed{
		Title: "⚙️ Bot Settings",
		Color: colorBlurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Channels", Value: fmt.Sprintf("Staff review: %s\nReviews: %s\nLogs: %s",
				channel(gs.Channels.StaffReviewChannel), channel(gs.Channels.ReviewsChannel), channel(gs.Channels.LogsChannel))},
			{Name: "Staff Role", Value: staffRole},
			{Name: "Features", Value: strings.Join(fl, "\n")},
			{Name: "Cooldowns", Value: fmt.Sprintf("Request: %s\nSubmission: %s",
				gs.Cooldowns.RequestDuration(), gs.Cooldowns.SubmissionDuration())},
			{Name: "Review Rules", Value: fmt.Sprintf("Text: %d-%d characters\nRating: %d-%d\nMax per user: %s",
				gs.Review.MinTextLength, gs.Review.MaxTextLength, gs.Review.MinRating, gs.Review.MaxRating, maxReviews)},
		},
	}
}
