package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// PushoverEndpoint is the Pushover message API.
const PushoverEndpoint = "https://api.pushover.net/1/messages.json"

type PushoverConfig struct {
	APIToken string
	UserKey  string
	Endpoint string
}

// Pushover sends messages through the Pushover HTTP API.
type Pushover struct {
	cfg    PushoverConfig
	client *http.Client
}

func NewPushover(cfg PushoverConfig, client *http.Client) *Pushover {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = PushoverEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Pushover{cfg: cfg, client: client}
}

func (p *Pushover) Name() string { return "pushover" }

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

func (p *Pushover) Send(ctx context.Context, msg Message) error {
	token := strings.TrimSpace(p.cfg.APIToken)
	user := strings.TrimSpace(p.cfg.UserKey)
	if token == "" || user == "" {
		return skipped("pushover credentials not configured")
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("user", user)
	form.Set("message", msg.Text)
	if msg.Title != "" {
		form.Set("title", msg.Title)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var pr pushoverResponse
	_ = json.Unmarshal(body, &pr)

	if resp.StatusCode == http.StatusOK && pr.Status == 1 {
		return nil
	}

	reason := strings.Join(pr.Errors, "; ")
	if reason == "" {
		reason = strings.TrimSpace(string(body))
	}
	err = fmt.Errorf("pushover: http %d: %s", resp.StatusCode, reason)
	// 4xx other than throttling means the request itself is wrong.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}
