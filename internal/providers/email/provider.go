package email

import (
	"context"
	"errors"
	"sync"
)

type Message struct {
	To      []string
	Subject string
	Body    string
	// HTML switches the content type from text/plain to text/html.
	HTML bool
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
	// Verify connects and authenticates without sending anything.
	Verify(ctx context.Context) error
	Settings() []Setting
}

// Setting reports whether one configuration value is present. Values are
// never exposed.
type Setting struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

var (
	ErrNotConfigured     = errors.New("smtp_not_configured")
	ErrAuthFailed        = errors.New("smtp_auth_failed")
	ErrRecipientRejected = errors.New("smtp_recipient_rejected")
	ErrUnavailable       = errors.New("smtp_unavailable")
)

// RecordingProvider keeps messages in memory. Used by tests and local runs.
type RecordingProvider struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (p *RecordingProvider) Send(ctx context.Context, msg Message) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	return nil
}

func (p *RecordingProvider) Verify(ctx context.Context) error {
	return p.Err
}

func (p *RecordingProvider) Settings() []Setting {
	return []Setting{{Name: "SMTP_USER", Present: true}, {Name: "SMTP_PASSWORD", Present: true}}
}

func (p *RecordingProvider) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
