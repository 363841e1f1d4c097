package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot is the part of *tgbotapi.BotAPI the command handler uses.
type Bot interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Compactor runs segment compaction on demand.
type Compactor interface {
	RunOnce(ctx context.Context) (int, error)
}

// Handler answers admin commands in the admin chat and ignores every other chat.
type Handler struct {
	bot         Bot
	adminChatID int64
	compactor   Compactor
	logger      *zap.Logger
}

func NewHandler(bot Bot, adminChatID int64, compactor Compactor, logger *zap.Logger) *Handler {
	return &Handler{
		bot:         bot,
		adminChatID: adminChatID,
		compactor:   compactor,
		logger:      logger,
	}
}

func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)
	defer h.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	chatID := update.Message.Chat.ID
	if chatID != h.adminChatID {
		h.logger.Debug("command from foreign chat ignored", zap.Int64("chat_id", chatID))
		return
	}

	switch update.Message.Command() {
	case "start", "help":
		h.send(newHTMLMessage(chatID, msgHelp))

	case "compact":
		_ = h.withErrorHandling("compact", h.compactHandler())(ctx, chatID)

	default:
		h.send(newHTMLMessage(chatID, msgUnknownCommand))
	}
}

func (h *Handler) compactHandler() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		n, err := h.compactor.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("run compaction: %w", err)
		}

		h.send(newHTMLMessage(chatID, fmt.Sprintf(msgCompacted, n)))
		return nil
	}
}

func (h *Handler) sendError(chatID int64, text string) {
	h.send(newHTMLMessage(chatID, text))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Error(err),
		)
	}
}

func newHTMLMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}
