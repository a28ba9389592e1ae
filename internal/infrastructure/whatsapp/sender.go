package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/ports"
)

// Sender delivers template messages through the WATI WhatsApp API.
type Sender struct {
	endpoint string
	token    string
	client   *http.Client
}

var _ ports.MessageSender = (*Sender)(nil)

// NewSender registers the API endpoint and bearer token.
func NewSender(cfg config.MessagingConfig) (*Sender, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	token := strings.TrimSpace(cfg.Token)
	if endpoint == "" || token == "" {
		return nil, fmt.Errorf("whatsapp sender: %w", config.ErrMissingCredentials)
	}
	token = strings.TrimPrefix(token, "Bearer ")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Sender{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type templateRequest struct {
	TemplateName  string                 `json:"template_name"`
	BroadcastName string                 `json:"broadcast_name"`
	Parameters    []domain.TemplateParam `json:"parameters"`
}

// SendTemplate posts a template message and returns the decoded provider
// response. A 2xx with "result": false is reported as an error.
func (s *Sender) SendTemplate(ctx context.Context, recipient, templateName, broadcastName string, params []domain.TemplateParam) (map[string]any, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, fmt.Errorf("whatsapp sender: empty recipient")
	}

	body, err := json.Marshal(templateRequest{
		TemplateName:  templateName,
		BroadcastName: broadcastName,
		Parameters:    params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/sendTemplateMessage?whatsappNumber=%s", s.endpoint, url.QueryEscape(recipient))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("whatsapp error: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	decoded := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if result, ok := decoded["result"].(bool); ok && !result {
		info, _ := decoded["info"].(string)
		return decoded, fmt.Errorf("whatsapp rejected message: %s", info)
	}
	return decoded, nil
}
