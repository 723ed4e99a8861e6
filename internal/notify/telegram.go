package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"listou/internal/logger"
)

// TelegramNotifier sends alerts to one Telegram chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewTelegramNotifier authorizes the bot token against the Telegram API.
func NewTelegramNotifier(token string, chatID int64, log *zap.Logger) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(token, tgbotapi.APIEndpoint, chatID, nil, log)
}

// NewTelegramNotifierWithEndpoint talks to a custom API endpoint (format "<base>/bot%s/%s").
// A nil client uses http.DefaultClient.
func NewTelegramNotifierWithEndpoint(token, endpoint string, chatID int64, client tgbotapi.HTTPClient, log *zap.Logger) (*TelegramNotifier, error) {
	log = logger.OrNop(log)
	var (
		api *tgbotapi.BotAPI
		err error
	)
	if client == nil {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	} else {
		api, err = tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Info("telegram notifier authorized", zap.String("account", api.Self.UserName))
	return &TelegramNotifier{api: api, chatID: chatID, log: log}, nil
}

func (n *TelegramNotifier) ForeignAddition(_ context.Context, a Alert) {
	text := fmt.Sprintf("🛒 *%s* adicionou *%s* à lista",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, a.Attributor),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, a.ItemName))
	n.send(text)
}

func (n *TelegramNotifier) PushMessage(_ context.Context, m Message) {
	m = m.WithDefaults()
	text := fmt.Sprintf("🔔 *%s*\n%s",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, m.Title),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, m.Body))
	n.send(text)
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		n.log.Error("failed to send telegram notification", zap.Int64("chat_id", n.chatID), zap.Error(err))
	}
}
