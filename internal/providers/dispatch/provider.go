package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Provider delivers one message to one contact. Implementations never retry;
// the caller decides whether a failed request is attempted again.
type Provider interface {
	Name() string
	MaxBodyLength() int
	Send(ctx context.Context, contact Contact, body string) (Result, error)
	// Diagnose reports configuration completeness. It must not send.
	Diagnose(ctx context.Context) Report
}

// Result means the backend accepted the message, not that the handset got it.
type Result struct {
	Backend    string    `json:"backend"`
	MessageID  string    `json:"message_id,omitempty"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type Setting struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

type Report struct {
	Backend    string    `json:"backend"`
	Configured bool      `json:"configured"`
	Settings   []Setting `json:"settings"`
	// Probe is empty when no live check ran, otherwise "ok" or "failed".
	Probe string `json:"probe,omitempty"`
	Error string `json:"error,omitempty"`
}

func (r Report) Missing() []string {
	var missing []string
	for _, s := range r.Settings {
		if !s.Present {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

func settingsReport(backend string, settings []Setting) Report {
	report := Report{Backend: backend, Settings: settings}
	if report.Settings == nil {
		report.Settings = []Setting{}
	}
	report.Configured = len(report.Missing()) == 0
	if !report.Configured {
		report.Error = "missing " + strings.Join(report.Missing(), ", ")
	}
	return report
}

type configChecker interface {
	CheckConfig() Report
}

// CheckConfig reports which settings are missing without contacting the
// backend. Providers that need no settings report configured.
func CheckConfig(p Provider) Report {
	if c, ok := p.(configChecker); ok {
		return c.CheckConfig()
	}
	return settingsReport(p.Name(), nil)
}

var (
	// ErrBackendUnavailable is transient: network failure, timeout, rate limit
	// or a 5xx from the backend.
	ErrBackendUnavailable = errors.New("backend_unavailable")
	// ErrInvalidContact is permanent for the given contact.
	ErrInvalidContact = errors.New("invalid_contact")
	// ErrConfiguration blocks every send until an operator fixes it.
	ErrConfiguration = errors.New("configuration_error")
)

const (
	KindBackendUnavailable = "backend_unavailable"
	KindInvalidContact     = "invalid_contact"
	KindConfiguration      = "configuration_error"
)

// Kind maps an error to a stable kind string. Unknown errors and context
// expiry are treated as transient.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidContact):
		return KindInvalidContact
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindBackendUnavailable
	}
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
