package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"supportdesk/internal/config"
)

// EmailDispatcher sends plain-text email via SMTP.
// target is the recipient address.
type EmailDispatcher struct {
	from string
	addr string
}

func NewEmailDispatcher(cfg config.NotifyConfig) *EmailDispatcher {
	return &EmailDispatcher{
		from: cfg.EmailFrom,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

func (d *EmailDispatcher) Notify(ctx context.Context, target, title, body string, data map[string]string) error {
	if target == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", d.from)
	fmt.Fprintf(&b, "To: %s\r\n", target)
	fmt.Fprintf(&b, "Subject: %s\r\n", title)
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	return smtp.SendMail(d.addr, nil, d.from, []string{target}, []byte(b.String()))
}
