package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.dispatch",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Mailer   email.Provider
	Carriers *config.CarrierConfigHolder
}

// NewFromConfig resolves the process-wide backend once. An unknown backend
// name fails startup.
func NewFromConfig(p Params) (Provider, error) {
	var provider Provider
	switch p.Config.Dispatch.Backend {
	case config.BackendTwilio:
		provider = NewTwilio(TwilioConfig{
			AccountSID: p.Config.Dispatch.TwilioAccountSID,
			AuthToken:  p.Config.Dispatch.TwilioAuthToken,
			FromNumber: p.Config.Dispatch.TwilioFromNumber,
			Probe:      p.Config.Dispatch.Probe,
		}, p.Log)
	case config.BackendEmailGateway:
		provider = NewGateway(p.Mailer, p.Carriers, p.Log)
	case config.BackendEmail:
		provider = NewEmail(p.Mailer, p.Log)
	case config.BackendLog:
		provider = NewLog(p.Log)
	default:
		return nil, fmt.Errorf("unsupported dispatch backend %q", p.Config.Dispatch.Backend)
	}

	// Startup only checks settings; live checks run from the diagnose endpoint.
	report := CheckConfig(provider)
	provider = WithTimeout(provider, p.Config.Dispatch.Timeout)
	if !report.Configured {
		p.Log.Warn("dispatch backend is not fully configured",
			zap.String("backend", report.Backend),
			zap.String("missing", strings.Join(report.Missing(), ",")),
		)
	} else {
		p.Log.Info("dispatch backend selected", zap.String("backend", provider.Name()))
	}
	return provider, nil
}

type timeoutProvider struct {
	Provider
	timeout time.Duration
}

// WithTimeout bounds every Send and Diagnose call.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{Provider: p, timeout: timeout}
}

func (p *timeoutProvider) Send(ctx context.Context, contact Contact, body string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.Send(ctx, contact, body)
}

func (p *timeoutProvider) CheckConfig() Report {
	return CheckConfig(p.Provider)
}

func (p *timeoutProvider) Diagnose(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.Diagnose(ctx)
}
