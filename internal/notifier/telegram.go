package notifier

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	client   *resty.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support. An
// empty apiURL uses the public Bot API.
func NewTelegramNotifier(botToken, chatID, proxyURL, apiURL string) *TelegramNotifier {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	client := resty.New()
	client.SetBaseURL(apiURL)
	client.SetTimeout(35 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &TelegramNotifier{BotToken: botToken, ChatID: chatID, client: client}
}

var mdBold = regexp.MustCompile(`\*\*(.+?)\*\*`)

// ToHTML escapes text and turns **bold** runs into <b> tags.
func ToHTML(text string) string {
	return mdBold.ReplaceAllString(html.EscapeString(text), "<b>$1</b>")
}

// Send delivers title and body as one HTML message, retrying twice.
func (t *TelegramNotifier) Send(ctx context.Context, title, body string) bool {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(title), ToHTML(body))
	if err := t.SendWithRetry(ctx, text, 2); err != nil {
		log.Printf("[ERROR] telegram %q: %v", title, err)
		return false
	}
	return true
}

// SendText sends an HTML message to the configured chat.
func (t *TelegramNotifier) SendText(ctx context.Context, text string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.BotToken))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Backoff is the wait before retry i (0-based).
var Backoff = func(i int) time.Duration { return time.Duration(1<<uint(i)) * time.Second }

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.SendText(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := Backoff(i)
		log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}
