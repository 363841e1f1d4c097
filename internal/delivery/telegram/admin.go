// Package telegram delivers operational alerts to an admin chat.
package telegram

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminNotifier posts alerts to one admin chat.
type AdminNotifier struct {
	bot    Sender
	chatID int64
	logger *zap.Logger
}

func NewAdminNotifier(bot Sender, chatID int64, logger *zap.Logger) *AdminNotifier {
	return &AdminNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}
}

// Alert sends text to the admin chat.
func (n *AdminNotifier) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, "<b>academy-tube</b>\n"+html.EscapeString(text))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send admin alert: %w", err)
	}

	n.logger.Debug("admin alert sent", zap.Int64("chat_id", n.chatID))
	return nil
}

// LogNotifier is used when no bot token is configured: alerts only reach the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Alert(_ context.Context, text string) error {
	n.logger.Warn("admin alert", zap.String("text", text))
	return nil
}
