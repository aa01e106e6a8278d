package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"weather-alerts/internal/alerting"
	"weather-alerts/pkg/logging"
)

// ChannelTelegram is the Name() of TelegramNotifier.
const ChannelTelegram = "telegram"

// TelegramConfig addresses one chat.
type TelegramConfig struct {
	Token  string
	ChatID int64
	// Endpoint overrides tgbotapi.APIEndpoint, e.g. for a local bot API server.
	Endpoint string
	Timeout  time.Duration
}

// TelegramNotifier posts the subject and body as one chat message.
type TelegramNotifier struct {
	cfg    TelegramConfig
	client *http.Client
	logger *logging.StructuredLogger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier builds a notifier. The bot is authenticated on first Send.
func NewTelegramNotifier(cfg TelegramConfig, logger *logging.StructuredLogger) *TelegramNotifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TelegramNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (n *TelegramNotifier) Name() string {
	return ChannelTelegram
}

func (n *TelegramNotifier) botAPI() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bot != nil {
		return n.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(n.cfg.Token, n.cfg.Endpoint, n.client)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	n.bot = bot
	return bot, nil
}

// Send posts msg to the configured chat.
func (n *TelegramNotifier) Send(ctx context.Context, msg alerting.Message) error {
	if err := ctx.Err(); err != nil {
		return &NotificationError{Channel: ChannelTelegram, Err: err}
	}

	bot, err := n.botAPI()
	if err != nil {
		return &NotificationError{Channel: ChannelTelegram, Err: err}
	}

	out := tgbotapi.NewMessage(n.cfg.ChatID, msg.Subject+"\n\n"+msg.Body)
	out.DisableWebPagePreview = true
	if _, err := bot.Send(out); err != nil {
		return &NotificationError{Channel: ChannelTelegram, Err: err}
	}

	n.logger.Info(ctx, "[NOTIFY_TELEGRAM_SENT] Alert message sent", logging.Fields{
		"chat_id": n.cfg.ChatID,
	})
	return nil
}
