package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/you/pulpit/internal/domain"
)

// WhatsApp sends a post's text to a fixed recipient through the
// Business Cloud messaging API.
type WhatsApp struct {
	phoneID     string
	accessToken string
	recipient   string
	baseURL     string
	client      *http.Client
}

func NewWhatsApp(phoneID, accessToken, recipient string, client *http.Client) *WhatsApp {
	if client == nil {
		client = http.DefaultClient
	}
	return &WhatsApp{
		phoneID:     phoneID,
		accessToken: accessToken,
		recipient:   recipient,
		baseURL:     graphBaseURL,
		client:      client,
	}
}

func (w *WhatsApp) Platform() string { return "whatsapp" }

// WhatsApp Business Cloud API message payload types.
type waMessagePayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             waText `json:"text"`
}

type waText struct {
	Body string `json:"body"`
}

func (w *WhatsApp) Dispatch(ctx context.Context, post *domain.Post) error {
	payload := waMessagePayload{
		MessagingProduct: "whatsapp",
		To:               w.recipient,
		Type:             "text",
		Text:             waText{Body: post.Body},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "whatsapp: marshal payload")
	}

	endpoint := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "whatsapp: build request")
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "whatsapp: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.Errorf("whatsapp: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return errors.Wrap(err, "whatsapp: decode response")
	}
	if len(out.Messages) == 0 {
		return errors.New("whatsapp: response missing messages")
	}
	return nil
}
