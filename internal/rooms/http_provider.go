package rooms

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

// HTTPProvider talks to the media provider's REST API.
//
// The wire format is intentionally minimal: POST /rooms, POST /tokens,
// DELETE /rooms/{name}. Provider-specific quirks belong here, never in the
// orchestrator.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(cfg config.RoomsConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Name() string { return "rooms-http" }

type createRoomPayload struct {
	Mode      string `json:"mode"`
	ExpiresAt int64  `json:"expires_at"`
}

type createRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (p *HTTPProvider) CreateRoom(ctx context.Context, mode string, expiry time.Time) (Room, error) {
	var out createRoomResponse
	err := p.do(ctx, http.MethodPost, "/rooms", createRoomPayload{
		Mode:      mode,
		ExpiresAt: expiry.Unix(),
	}, &out)
	if err != nil {
		return Room{}, fmt.Errorf("rooms: create room: %w", err)
	}
	if out.Name == "" {
		return Room{}, fmt.Errorf("rooms: provider returned empty room name")
	}
	return Room{Name: out.Name, URL: out.URL}, nil
}

type createTokenPayload struct {
	RoomName   string `json:"room_name"`
	Privileged bool   `json:"is_owner"`
	Mode       string `json:"mode"`
}

type createTokenResponse struct {
	Token string `json:"token"`
}

func (p *HTTPProvider) CreateToken(ctx context.Context, roomName string, privileged bool, mode string) (string, error) {
	var out createTokenResponse
	err := p.do(ctx, http.MethodPost, "/tokens", createTokenPayload{
		RoomName:   roomName,
		Privileged: privileged,
		Mode:       mode,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("rooms: create token: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("rooms: provider returned empty token")
	}
	return out.Token, nil
}

func (p *HTTPProvider) DeleteRoom(ctx context.Context, roomName string) error {
	err := p.do(ctx, http.MethodDelete, "/rooms/"+roomName, nil, nil)
	if err != nil {
		return fmt.Errorf("rooms: delete room: %w", err)
	}
	return nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Deleting an unknown room is fine; DeleteRoom must be idempotent.
	if method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider status %d: %s", resp.StatusCode, string(raw))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
