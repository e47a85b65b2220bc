package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
)

// Sender delivers notifications to one Telegram chat. A disabled sender
// silently drops everything.
type Sender struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewSender(cfg *config.Config, log *logger.Logger) *Sender {
	return newSender(cfg, tgbotapi.APIEndpoint, log)
}

func newSender(cfg *config.Config, endpoint string, log *logger.Logger) *Sender {
	log = log.Component("telegram")
	if !cfg.Telegram.Enabled {
		return &Sender{enabled: false, logger: log}
	}

	_ = tgbotapi.SetLogger(log)

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Telegram.BotToken, endpoint)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Sender{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Sender{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (s *Sender) Enabled() bool {
	return s.enabled
}

// Send posts the title in bold followed by the message. Message text is
// escaped so mints and tier IDs do not break Markdown parsing.
func (s *Sender) Send(_ context.Context, title, message string) error {
	if !s.enabled {
		return nil
	}

	text := fmt.Sprintf("*%s*\n%s",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, title),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, message))

	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func (s *Sender) Name() string {
	return "telegram"
}
