package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// WebhookNotifier posts a JSON document to an arbitrary HTTP endpoint
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// WebhookPayload is the body posted by WebhookNotifier
type WebhookPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Type   string `json:"type"`
	RunID  string `json:"run_id,omitempty"`
	Log    string `json:"log,omitempty"`
	SentAt string `json:"sent_at"`
}

// NewWebhookNotifier creates a notifier posting to url
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// TypeName returns the lower-case name of a notification type
func TypeName(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "success"
	case NotifyWarning:
		return "warning"
	case NotifyError:
		return "failure"
	default:
		return "info"
	}
}

// Send posts the notification
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	p := WebhookPayload{
		Title:  n.Title,
		Body:   n.Message,
		Type:   TypeName(n.Type),
		RunID:  n.RunID,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	}
	if n.Attachment != "" {
		data, err := os.ReadFile(n.Attachment)
		if err != nil {
			return fmt.Errorf("reading log attachment: %w", err)
		}
		p.Log = string(data)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return postJSON(ctx, w.client, w.url, payload, "webhook")
}

// readTail returns at most limit bytes from the end of a file
func readTail(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() > limit {
		if _, err := f.Seek(info.Size()-limit, io.SeekStart); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
