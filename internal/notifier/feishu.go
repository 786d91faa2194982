package notifier

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/model"
)

// Card template colours.
const (
	TemplateRed  = "red"
	TemplateBlue = "blue"
)

// alertWords turn a card red when they appear in its title or body.
var alertWords = []string{"止损", "卖出", "预警", "信号"}

// TemplateFor picks the header colour for a message.
func TemplateFor(title, body string) string {
	text := title + body
	for _, w := range alertWords {
		if strings.Contains(text, w) {
			return TemplateRed
		}
	}
	return TemplateBlue
}

// Card is an interactive Feishu message.
type Card struct {
	Title    string
	Body     string
	Template string
	// Note is the grey footer; empty uses the Beijing send time.
	Note string
	// Divider draws a rule between body and note.
	Divider bool
}

// FeishuNotifier posts to a Feishu custom-bot webhook.
type FeishuNotifier struct {
	client  *resty.Client
	webhook string
	clock   clock.Clock
}

func NewFeishuNotifier(webhook string, timeout time.Duration, c clock.Clock) *FeishuNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if c == nil {
		c = clock.System{}
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return &FeishuNotifier{client: client, webhook: webhook, clock: c}
}

func (f *FeishuNotifier) Send(ctx context.Context, title, body string) bool {
	return f.SendCard(ctx, Card{Title: title, Body: body, Template: TemplateFor(title, body)})
}

func (f *FeishuNotifier) SendCard(ctx context.Context, c Card) bool {
	if c.Template == "" {
		c.Template = TemplateFor(c.Title, c.Body)
	}
	if c.Note == "" {
		c.Note = "时间 (北京): " + f.clock.Now().In(clock.Beijing).Format(model.TimeLayout)
	}
	elements := []map[string]any{
		{"tag": "div", "text": map[string]string{"content": c.Body, "tag": "lark_md"}},
	}
	if c.Divider {
		elements = append(elements, map[string]any{"tag": "hr"})
	}
	elements = append(elements, map[string]any{
		"tag":      "note",
		"elements": []map[string]string{{"content": c.Note, "tag": "plain_text"}},
	})
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"template": c.Template,
				"title":    map[string]string{"content": c.Title, "tag": "plain_text"},
			},
			"elements": elements,
		},
	}
	if err := f.post(ctx, payload); err != nil {
		log.Printf("[ERROR] feishu card %q: %v", c.Title, err)
		return false
	}
	return true
}

// SendText posts a plain text message.
func (f *FeishuNotifier) SendText(ctx context.Context, text string) bool {
	payload := map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": text},
	}
	if err := f.post(ctx, payload); err != nil {
		log.Printf("[ERROR] feishu text: %v", err)
		return false
	}
	return true
}

// Failure reports a job that crashed.
func (f *FeishuNotifier) Failure(ctx context.Context, job string, err error) bool {
	now := f.clock.Now().In(clock.Beijing).Format(model.TimeLayout)
	return f.SendText(ctx, fmt.Sprintf("❌ %s运行故障: %v\n🕒 故障时间: %s", job, err, now))
}

func (f *FeishuNotifier) post(ctx context.Context, payload any) error {
	if f.webhook == "" {
		return fmt.Errorf("feishu webhook not configured")
	}
	resp, err := f.client.R().SetContext(ctx).SetBody(payload).Post(f.webhook)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("feishu status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
