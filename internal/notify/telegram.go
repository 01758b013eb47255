package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/avicke/foliotrack/internal/config"
	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/storage"
)

// Notifier pushes Telegram messages for recorded sells. Disabled (a no-op)
// unless configured.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func New(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) NotifySell(symbol string, class storage.AssetClass, quantity, price, realized decimal.Decimal) {
	emoji := "🔴"
	if realized.IsPositive() {
		emoji = "💰"
	}
	msg := fmt.Sprintf("%s *SELL* %s (%s)\nQty: %s\nPrice: $%s\nRealized P&L: $%s",
		emoji, symbol, class, quantity.String(), price.StringFixed(2), realized.StringFixed(2))
	n.send(msg)
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}
