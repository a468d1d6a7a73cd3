package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

const (
	BackendTwilio      = "twilio"
	twilioMaxBodyRunes = 320
)

// twilioAPI is the slice of the Twilio REST client used here.
type twilioAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	FetchAccount(sid string) (*openapi.ApiV2010Account, error)
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// Probe enables the account status check in Diagnose.
	Probe bool
}

func (c TwilioConfig) settings() []Setting {
	return []Setting{
		{Name: "TWILIO_ACCOUNT_SID", Present: c.AccountSID != ""},
		{Name: "TWILIO_AUTH_TOKEN", Present: c.AuthToken != ""},
		{Name: "TWILIO_FROM_NUMBER", Present: c.FromNumber != ""},
	}
}

type TwilioProvider struct {
	cfg TwilioConfig
	api twilioAPI
	log *zap.Logger
	now func() time.Time
}

func NewTwilio(cfg TwilioConfig, log *zap.Logger) *TwilioProvider {
	var api twilioAPI
	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		api = client.Api
	}
	return newTwilioWithAPI(cfg, api, log)
}

func newTwilioWithAPI(cfg TwilioConfig, api twilioAPI, log *zap.Logger) *TwilioProvider {
	return &TwilioProvider{
		cfg: cfg,
		api: api,
		log: log.Named("dispatch.twilio"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (p *TwilioProvider) Name() string       { return BackendTwilio }
func (p *TwilioProvider) MaxBodyLength() int { return twilioMaxBodyRunes }

func (p *TwilioProvider) configured() bool {
	return p.api != nil && p.cfg.FromNumber != ""
}

func (p *TwilioProvider) Send(ctx context.Context, contact Contact, body string) (Result, error) {
	if !p.configured() {
		return Result{}, fmt.Errorf("%w: twilio credentials incomplete", ErrConfiguration)
	}
	if !contact.IsPhone() {
		return Result{}, fmt.Errorf("%w: twilio requires a phone number", ErrInvalidContact)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(contact.Phone)
	params.SetFrom(p.cfg.FromNumber)
	params.SetBody(body)

	// The SDK call takes no context; bound it so a hung request maps to a
	// transient failure instead of blocking the batch.
	type outcome struct {
		msg *openapi.ApiV2010Message
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		msg, err := p.api.CreateMessage(params)
		done <- outcome{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return Result{}, classifyTwilio(out.err)
		}
		result := Result{Backend: BackendTwilio, AcceptedAt: p.now()}
		if out.msg != nil && out.msg.Sid != nil {
			result.MessageID = *out.msg.Sid
		}
		p.log.Info("sms accepted",
			zap.String("contact", contact.Masked()),
			zap.String("message_id", result.MessageID),
		)
		return result, nil
	}
}

func (p *TwilioProvider) CheckConfig() Report {
	return settingsReport(BackendTwilio, p.cfg.settings())
}

func (p *TwilioProvider) Diagnose(ctx context.Context) Report {
	report := p.CheckConfig()
	if !report.Configured {
		return report
	}
	if !p.cfg.Probe || p.api == nil {
		return report
	}

	type outcome struct {
		account *openapi.ApiV2010Account
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		account, err := p.api.FetchAccount(p.cfg.AccountSID)
		done <- outcome{account: account, err: err}
	}()

	select {
	case <-ctx.Done():
		report.Probe = "failed"
		report.Error = "account probe timed out"
	case out := <-done:
		switch {
		case out.err != nil:
			report.Probe = "failed"
			report.Error = Kind(classifyTwilio(out.err))
		case out.account != nil && out.account.Status != nil && *out.account.Status != "active":
			report.Probe = "failed"
			report.Error = "account status " + *out.account.Status
		default:
			report.Probe = "ok"
		}
	}
	return report
}

// Twilio error codes that mean the destination itself is unusable.
var twilioContactCodes = map[int]struct{}{
	21211: {}, // invalid To number
	21214: {}, // To number cannot be reached
	21217: {}, // phone number does not appear to be valid
	21408: {}, // region not enabled for this number
	21610: {}, // recipient unsubscribed
	21612: {}, // To number not reachable from this From number
	21614: {}, // To number is not a mobile number
}

// Twilio error codes caused by the sending account or number.
var twilioConfigCodes = map[int]struct{}{
	20003: {}, // authentication failed
	20404: {}, // resource not found, usually a wrong account SID
	21212: {}, // invalid From number
	21603: {}, // From number missing
	21606: {}, // From number not SMS capable
}

func classifyTwilio(err error) error {
	var restErr *twilioclient.TwilioRestError
	if !errors.As(err, &restErr) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	detail := fmt.Sprintf("twilio %d (http %d)", restErr.Code, restErr.Status)
	if _, ok := twilioContactCodes[restErr.Code]; ok {
		return fmt.Errorf("%w: %s", ErrInvalidContact, detail)
	}
	if _, ok := twilioConfigCodes[restErr.Code]; ok {
		return fmt.Errorf("%w: %s", ErrConfiguration, detail)
	}
	switch {
	case restErr.Status == http.StatusUnauthorized || restErr.Status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrConfiguration, detail)
	default:
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, detail)
	}
}
