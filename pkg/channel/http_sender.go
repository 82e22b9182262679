package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ai-bookingchat-be/internal/pkg/logger"
)

// HTTPSender delivers outbound messages through the channel gateway, the
// provider-facing service that owns the WhatsApp/Telegram connections.
type HTTPSender struct {
	BaseURL string
	logger  logger.ILogger
}

func NewHTTPSender(baseURL string, log logger.ILogger) *HTTPSender {
	return &HTTPSender{
		BaseURL: baseURL,
		logger:  log,
	}
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// Send posts one message to the gateway and returns the provider message
// id. Without a configured gateway the message is logged and dropped,
// which keeps local development runnable.
func (s *HTTPSender) Send(ctx context.Context, destination, payload, origin string) (string, error) {
	if s.BaseURL == "" {
		s.logger.Info("ChannelGateway", "No gateway configured, dropping outbound message", map[string]interface{}{
			"to":   destination,
			"text": payload,
		})
		return "", nil
	}

	reqBody := sendRequest{
		To:   destination,
		From: origin,
		Text: payload,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/api/send", s.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("channel gateway error: %s", string(bodyBytes))
	}

	var gatewayResp sendResponse
	if err := json.Unmarshal(bodyBytes, &gatewayResp); err != nil {
		return "", err
	}
	return gatewayResp.MessageID, nil
}
