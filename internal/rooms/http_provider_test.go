package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"supportdesk/internal/config"
)

func TestHTTPProvider_CreateRoomAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/rooms":
			_ = json.NewEncoder(w).Encode(map[string]string{"name": "room-1", "url": "https://rooms/room-1"})
		case "/tokens":
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["is_owner"] == true {
				_ = json.NewEncoder(w).Encode(map[string]string{"token": "host-token"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "guest-token"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.RoomsConfig{BaseURL: srv.URL, APIKey: "key"})

	room, err := p.CreateRoom(context.Background(), "video", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.Name != "room-1" {
		t.Fatalf("unexpected room: %+v", room)
	}

	tok, err := p.CreateToken(context.Background(), room.Name, true, "video")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if tok != "host-token" {
		t.Fatalf("unexpected token: %q", tok)
	}
}

func TestHTTPProvider_DeleteRoomIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.RoomsConfig{BaseURL: srv.URL, APIKey: "key"})
	if err := p.DeleteRoom(context.Background(), "gone"); err != nil {
		t.Fatalf("delete of unknown room should be idempotent, got %v", err)
	}
}

func TestHTTPProvider_SurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.RoomsConfig{BaseURL: srv.URL, APIKey: "key"})
	if _, err := p.CreateRoom(context.Background(), "audio", time.Now().Add(time.Hour)); err == nil {
		t.Fatalf("expected provider error")
	}
}
