package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"supportdesk/internal/config"
)

const fcmEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMDispatcher delivers push notifications to agent devices.
// target is the device registration token.
type FCMDispatcher struct {
	key      string
	endpoint string
	client   *http.Client
}

func NewFCMDispatcher(cfg config.NotifyConfig) *FCMDispatcher {
	return &FCMDispatcher{
		key:      cfg.FCMKey,
		endpoint: fcmEndpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type fcmPayload struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (d *FCMDispatcher) Notify(ctx context.Context, target, title, body string, data map[string]string) error {
	if target == "" {
		return nil
	}
	raw, err := json.Marshal(fcmPayload{
		To:           target,
		Notification: fcmNotification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "key="+d.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fcm status %d", resp.StatusCode)
	}
	return nil
}
