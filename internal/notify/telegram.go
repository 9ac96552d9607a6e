package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"crawlwatch/internal/config"
	"crawlwatch/internal/history"
)

// Sink delivers alerts somewhere a human will see them
type Sink interface {
	Name() string
	Send(ctx context.Context, alert history.Alert) error
}

// botAPI abstracts the Telegram bot methods the sink uses, enabling testing with mocks.
type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSink posts alerts to a single Telegram chat
type TelegramSink struct {
	bot     botAPI
	chatID  int64
	limiter *rate.Limiter
}

// NewTelegramSink connects to the Bot API with the configured token
func NewTelegramSink(cfg config.TelegramConfig) (*TelegramSink, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat_id is required")
	}

	b, err := bot.New(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newTelegramSink(b, cfg.ChatID, cfg.MessagesPerSecond), nil
}

func newTelegramSink(b botAPI, chatID int64, perSecond float64) *TelegramSink {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &TelegramSink{
		bot:     b,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Name implements Sink
func (s *TelegramSink) Name() string { return "telegram" }

// Send waits for the rate limiter, then posts the alert
func (s *TelegramSink) Send(ctx context.Context, alert history.Alert) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	params := &bot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      formatAlert(alert),
		ParseMode: models.ParseModeMarkdownV1,
	}
	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		if !strings.Contains(err.Error(), "can't parse entities") {
			return fmt.Errorf("failed to send message: %w", err)
		}
		log.Printf("[Notify] Markdown rejected, retrying as plain text: %v", err)
		params.ParseMode = ""
		params.Text = alert.Message
		if _, err := s.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send message (plain text fallback): %w", err)
		}
	}
	return nil
}

func formatAlert(a history.Alert) string {
	var title string
	switch a.Kind {
	case KindCrawlStatus:
		title = "Crawler status"
	case KindAccountError:
		title = "Account error"
	case KindKeywordIncrease:
		title = "Keyword detected"
	default:
		title = "Alert"
	}
	return fmt.Sprintf("*%s*\n%s", title, a.Message)
}
