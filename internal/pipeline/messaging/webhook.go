package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

// WebhookMessenger posts outbound replies to per-channel webhook
// endpoints. A send failure never fails the pipeline; callers publish a
// retry event instead.
type WebhookMessenger struct {
	endpoints map[model.Channel]string
	http      *http.Client
}

func NewWebhookMessenger(whatsappURL, lineURL string, timeout time.Duration) *WebhookMessenger {
	endpoints := make(map[model.Channel]string)
	if whatsappURL != "" {
		endpoints[model.ChannelWhatsApp] = whatsappURL
	}
	if lineURL != "" {
		endpoints[model.ChannelLine] = lineURL
	}
	return &WebhookMessenger{
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
	}
}

func (m *WebhookMessenger) Send(ctx context.Context, channel model.Channel, recipient, text string) error {
	url, ok := m.endpoints[channel]
	if !ok {
		return fmt.Errorf("no endpoint configured for channel %s", channel)
	}

	payload, err := json.Marshal(map[string]string{
		"recipient": recipient,
		"text":      text,
	})
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send to %s: status %d: %s", channel, resp.StatusCode, bytes.TrimSpace(msg))
	}

	logx.Debug().Str("channel", string(channel)).Msg("reply delivered")
	return nil
}

var _ model.Messenger = (*WebhookMessenger)(nil)
