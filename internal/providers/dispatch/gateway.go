package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/providers/email"
	"go.uber.org/zap"
)

const (
	BackendEmailGateway = "email_gateway"
	BackendEmail        = "email"
	gatewayMaxBodyRunes = 160
	emailMaxBodyRunes   = 2000
	defaultEmailSubject = "A quick favor?"
)

// GatewayProvider sends SMS through a carrier's email-to-SMS relay. The
// carrier table is read on every send so reloads apply immediately.
type GatewayProvider struct {
	mailer   email.Provider
	carriers *config.CarrierConfigHolder
	log      *zap.Logger
	now      func() time.Time
}

func NewGateway(mailer email.Provider, carriers *config.CarrierConfigHolder, log *zap.Logger) *GatewayProvider {
	return &GatewayProvider{
		mailer:   mailer,
		carriers: carriers,
		log:      log.Named("dispatch.email_gateway"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *GatewayProvider) Name() string       { return BackendEmailGateway }
func (p *GatewayProvider) MaxBodyLength() int { return gatewayMaxBodyRunes }

func (p *GatewayProvider) Send(ctx context.Context, contact Contact, body string) (Result, error) {
	if contact.Carrier == "" {
		return Result{}, fmt.Errorf("%w: carrier is required for the email gateway", ErrInvalidContact)
	}
	carrier, ok := p.carriers.Get().Lookup(contact.Carrier)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown carrier %q, supported: %s",
			ErrInvalidContact, contact.Carrier, strings.Join(p.carriers.Get().Keys(), ", "))
	}
	national, ok := contact.NationalUS()
	if !ok {
		return Result{}, fmt.Errorf("%w: the email gateway only reaches 10-digit US numbers", ErrInvalidContact)
	}

	address := national + "@" + carrier.Gateway
	if err := p.mailer.Send(ctx, email.Message{To: []string{address}, Body: body}); err != nil {
		return Result{}, mapMailError(err)
	}

	p.log.Info("sms relayed",
		zap.String("contact", contact.Masked()),
		zap.String("carrier", carrier.Key),
	)
	return Result{Backend: BackendEmailGateway, AcceptedAt: p.now()}, nil
}

func (p *GatewayProvider) CheckConfig() Report {
	return mailerSettings(BackendEmailGateway, p.mailer)
}

func (p *GatewayProvider) Diagnose(ctx context.Context) Report {
	return diagnoseMailer(ctx, p.CheckConfig(), p.mailer)
}

// EmailProvider sends the message as a plain email to an address contact.
type EmailProvider struct {
	mailer  email.Provider
	subject string
	log     *zap.Logger
	now     func() time.Time
}

func NewEmail(mailer email.Provider, log *zap.Logger) *EmailProvider {
	return &EmailProvider{
		mailer:  mailer,
		subject: defaultEmailSubject,
		log:     log.Named("dispatch.email"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *EmailProvider) Name() string       { return BackendEmail }
func (p *EmailProvider) MaxBodyLength() int { return emailMaxBodyRunes }

func (p *EmailProvider) Send(ctx context.Context, contact Contact, body string) (Result, error) {
	if contact.Email == "" {
		return Result{}, fmt.Errorf("%w: the email backend requires an email address", ErrInvalidContact)
	}
	if err := p.mailer.Send(ctx, email.Message{To: []string{contact.Email}, Subject: p.subject, Body: body}); err != nil {
		return Result{}, mapMailError(err)
	}
	p.log.Info("email accepted", zap.String("contact", contact.Masked()))
	return Result{Backend: BackendEmail, AcceptedAt: p.now()}, nil
}

func (p *EmailProvider) CheckConfig() Report {
	return mailerSettings(BackendEmail, p.mailer)
}

func (p *EmailProvider) Diagnose(ctx context.Context) Report {
	return diagnoseMailer(ctx, p.CheckConfig(), p.mailer)
}

func mailerSettings(backend string, mailer email.Provider) Report {
	var settings []Setting
	for _, s := range mailer.Settings() {
		settings = append(settings, Setting{Name: s.Name, Present: s.Present})
	}
	return settingsReport(backend, settings)
}

func diagnoseMailer(ctx context.Context, report Report, mailer email.Provider) Report {
	if !report.Configured {
		return report
	}

	// SMTP login is the probe: it authenticates and quits without sending.
	if err := mailer.Verify(ctx); err != nil {
		report.Probe = "failed"
		report.Error = Kind(mapMailError(err))
		return report
	}
	report.Probe = "ok"
	return report
}

func mapMailError(err error) error {
	switch {
	case errors.Is(err, email.ErrNotConfigured), errors.Is(err, email.ErrAuthFailed):
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	case errors.Is(err, email.ErrRecipientRejected):
		return fmt.Errorf("%w: %v", ErrInvalidContact, err)
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}
