package notifier

import (
	"context"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int
}

// Telegram sends messages to one chat (optionally a forum thread) via the
// Bot API.
type Telegram struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
}

// NewTelegram builds the sender without contacting Telegram. Missing
// credentials produce a sender whose sends are skipped.
func NewTelegram(cfg TelegramConfig, timeout time.Duration) (*Telegram, error) {
	t := &Telegram{threadID: cfg.ThreadID}
	if strings.TrimSpace(cfg.Token) == "" || cfg.ChatID == 0 {
		return t, nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   strings.TrimSpace(cfg.Token),
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	t.bot = bot
	t.chat = &tele.Chat{ID: cfg.ChatID}
	return t, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if t.bot == nil {
		return skipped("telegram token or chat_id not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := msg.Text
	if msg.Title != "" {
		text = msg.Title + "\n" + msg.Text
	}
	_, err := t.bot.Send(t.chat, text, &tele.SendOptions{
		DisableWebPagePreview: true,
		ThreadID:              t.threadID,
	})
	return err
}
