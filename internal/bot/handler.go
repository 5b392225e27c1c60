// Package bot is an optional capture surface: send the bot a YouTube
// link and it saves the video's thumbnail and metadata to the library.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"thumbvault/internal/capture"
	"thumbvault/internal/domain"
	"thumbvault/internal/storage"
)

// listLimit caps how many titles /list replies with.
const listLimit = 10

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	repo      storage.Repository
	collector capture.Collector
	log       logrus.FieldLogger
}

// NewHandler creates a new bot handler instance.
func NewHandler(token string, repo storage.Repository, collector capture.Collector, logger logrus.FieldLogger) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	b, err := tgbot.New(token)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	h := &Handler{
		bot:       b,
		repo:      repo,
		collector: collector,
		log:       log,
	}

	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/list", tgbot.MatchTypeExact, h.listHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypeContains, h.captureHandler)

	log.Info("Telegram bot handler initialized")
	return h, nil
}

// Start begins polling for updates. Blocks until the context is
// cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	_, err := h.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to send message")
	}
}

func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.log.WithField("user_id", update.Message.From.ID).Info("Received /start command")
	h.reply(ctx, update.Message.Chat.ID,
		"Send me a YouTube link and I'll save its thumbnail. Use /list to see your latest saves.")
}

// listHandler replies with the newest saved titles.
func (h *Handler) listHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	thumbnails, err := h.repo.ListThumbnails(ctx)
	if err != nil {
		h.log.WithError(err).Error("Failed to list thumbnails")
		h.reply(ctx, update.Message.Chat.ID, "Sorry, I couldn't read your library.")
		return
	}
	if len(thumbnails) == 0 {
		h.reply(ctx, update.Message.Chat.ID, "Your library is empty. Send me a YouTube link to start.")
		return
	}

	// Newest first.
	var sb strings.Builder
	count := 0
	for i := len(thumbnails) - 1; i >= 0 && count < listLimit; i-- {
		fmt.Fprintf(&sb, "• %s — %s\n", thumbnails[i].DisplayTitle(), thumbnails[i].DisplayChannel())
		count++
	}
	h.reply(ctx, update.Message.Chat.ID, sb.String())
}

// captureHandler treats any message containing a watch link as a save
// request.
func (h *Handler) captureHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	log := h.log.WithField("user_id", update.Message.From.ID)

	url := firstVideoURL(update.Message.Text)
	if url == "" {
		h.reply(ctx, chatID, "That doesn't look like a YouTube link. Send a watch URL, or /list.")
		return
	}

	meta, err := h.collector.Capture(ctx, url)
	if err != nil {
		log.WithError(err).Error("Capture failed")
		h.reply(ctx, chatID, "I couldn't read that video's page. Try again in a moment.")
		return
	}

	thumb := domain.Thumbnail{
		ID:           meta.VideoID,
		Title:        meta.Title,
		ChannelName:  meta.ChannelName,
		ThumbnailUrl: domain.ThumbnailURL(meta.VideoID),
		Url:          domain.WatchURL(meta.VideoID),
		Tags:         meta.Tags,
		Projects:     []string{},
	}
	if err := h.repo.SaveThumbnail(ctx, thumb); err != nil {
		log.WithError(err).Error("Failed to save captured thumbnail")
		h.reply(ctx, chatID, "Captured the video but couldn't save it.")
		return
	}

	log.WithField("video_id", meta.VideoID).Info("Thumbnail saved via bot")
	h.reply(ctx, chatID, fmt.Sprintf("Saved: %s (%s)", meta.Title, meta.ChannelName))
}

// firstVideoURL pulls the first token that carries a video id out of a
// message.
func firstVideoURL(text string) string {
	for _, field := range strings.Fields(text) {
		if capture.VideoIDFromURL(field) != "" {
			return field
		}
	}
	return ""
}
