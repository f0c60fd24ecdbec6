package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer is the subset of *http.Client the webhook needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier 把每份摘要以 JSON POST 到固定地址
type WebhookNotifier struct {
	url       string
	http      HTTPDoer
	userAgent string
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:       strings.TrimSpace(url),
		http:      &http.Client{Timeout: 20 * time.Second},
		userAgent: "tasknest-notify/1.0",
	}
}

// SetHTTPClient 替换 HTTP 客户端，传 nil 恢复默认
func (w *WebhookNotifier) SetHTTPClient(client HTTPDoer) {
	if client == nil {
		w.http = &http.Client{Timeout: 20 * time.Second}
		return
	}
	w.http = client
}

func (w *WebhookNotifier) Notify(ctx context.Context, d Digest) error {
	if w.url == "" {
		return fmt.Errorf("webhook: no url configured")
	}

	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("webhook: encode digest: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("X-Tasknest-Digest", d.ID)

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post digest %s: %w", d.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("webhook: digest %s rejected: %s", d.ID, msg)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return nil
}
