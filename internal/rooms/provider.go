package rooms

import (
	"context"
	"time"
)

// Provider defines the provider-agnostic interface for the external
// audio/video room service.
//
// Rules:
// - No provider SDK calls outside room adapters.
// - Room names are opaque handles; business logic must not parse them.
// - DeleteRoom is idempotent: deleting an unknown room is not an error.
type Provider interface {
	Name() string

	// CreateRoom provisions a media room. expiry bounds the room's lifetime
	// at the provider, independent of our own sweeper.
	CreateRoom(ctx context.Context, mode string, expiry time.Time) (Room, error)

	// CreateToken issues a join token for one participant. Privileged tokens
	// grant host controls (mute others, end the room).
	CreateToken(ctx context.Context, roomName string, privileged bool, mode string) (string, error)

	DeleteRoom(ctx context.Context, roomName string) error
}

// Room is a provider-agnostic handle to a created media room.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}
