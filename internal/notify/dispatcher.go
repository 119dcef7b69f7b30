package notify

import (
	"context"
	"log/slog"
)

// Dispatcher sends a best-effort out-of-band notification.
//
// Callers must treat every send as fire-and-forget: a returned error is for
// logging only and must never fail the operation that triggered it.
type Dispatcher interface {
	Notify(ctx context.Context, target, title, body string, data map[string]string) error
}

// LogDispatcher writes notifications to the structured log. It stands in
// for real channels in local development and tests.
type LogDispatcher struct {
	Channel string
	Log     *slog.Logger
}

func NewLogDispatcher(channel string, log *slog.Logger) *LogDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &LogDispatcher{Channel: channel, Log: log}
}

func (d *LogDispatcher) Notify(ctx context.Context, target, title, body string, data map[string]string) error {
	d.Log.Info("notification",
		"channel", d.Channel,
		"target", target,
		"title", title,
		"body", body,
		"data", data,
	)
	return nil
}
