// Package publish posts articles to Slack incoming webhooks.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/0xmattthemii/aryes-news-feed/internal/feed"
)

// Publisher delivers one article to one destination. It reports success as a
// bool and never returns an error; failures are logged.
type Publisher interface {
	Publish(ctx context.Context, destination string, article feed.Article) bool
}

type Webhook struct {
	client *http.Client
	logger *slog.Logger
}

func NewWebhook(client *http.Client, logger *slog.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{client: client, logger: logger}
}

func (w *Webhook) Publish(ctx context.Context, destination string, article feed.Article) bool {
	if err := w.post(ctx, destination, article); err != nil {
		w.logger.ErrorContext(ctx, "publish failed", "link", article.Link, "source", article.Source, "error", err)
		return false
	}
	return true
}

func (w *Webhook) post(ctx context.Context, destination string, article feed.Article) error {
	body, err := json.Marshal(NewMessage(article))
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// Message is a Slack Block Kit payload.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

type Block struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	Elements []Text `json:"elements,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	AltText  string `json:"alt_text,omitempty"`
}

type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) *Text {
	return &Text{Type: "mrkdwn", Text: s}
}

// NewMessage lays out an article as a linked heading, the source, the summary,
// the image when there is one, and a closing divider.
func NewMessage(a feed.Article) Message {
	blocks := []Block{
		{Type: "section", Text: mrkdwn(fmt.Sprintf("*<%s|%s>*", a.Link, escape(a.Title)))},
		{Type: "context", Elements: []Text{*mrkdwn("Source: " + escape(a.Source))}},
	}
	if a.Summary != "" {
		blocks = append(blocks, Block{Type: "section", Text: mrkdwn(escape(a.Summary))})
	}
	if a.HasImage() {
		blocks = append(blocks, Block{Type: "image", ImageURL: a.ImageURL, AltText: a.Title})
	}
	blocks = append(blocks, Block{Type: "divider"})

	return Message{
		Text:   a.Title + " " + a.Link,
		Blocks: blocks,
	}
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}
