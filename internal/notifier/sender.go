package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	logx "mindset/pkg/logx"
)

// DriverConfig selects and configures a Sender.
type DriverConfig struct {
	Driver   string // pushover (default) | telegram | log
	Timeout  time.Duration
	Pushover PushoverConfig
	Telegram TelegramConfig
}

// NewSender builds the Sender named by dc.Driver.
func NewSender(dc DriverConfig, log logx.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(dc.Driver)) {
	case "", "pushover":
		timeout := dc.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return NewPushover(dc.Pushover, &http.Client{Timeout: timeout}), nil
	case "telegram":
		return NewTelegram(dc.Telegram, dc.Timeout)
	case "log":
		return LogSender{Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown notifier driver: %s", dc.Driver)
	}
}

// LogSender writes pushes to the log instead of a remote service.
type LogSender struct {
	Log logx.Logger
}

func (LogSender) Name() string { return "log" }

func (l LogSender) Send(ctx context.Context, msg Message) error {
	l.Log.Info("push", logx.String("title", msg.Title), logx.String("text", msg.Text))
	return nil
}
