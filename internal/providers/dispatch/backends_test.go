package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type verifyCountingMailer struct {
	email.RecordingProvider
	verifies int
}

func (m *verifyCountingMailer) Verify(ctx context.Context) error {
	m.verifies++
	return m.RecordingProvider.Verify(ctx)
}

type fakeTwilio struct {
	sendErr   error
	accountSt string
	block     chan struct{}
	sent      []*openapi.CreateMessageParams
}

func (f *fakeTwilio) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	if f.block != nil {
		<-f.block
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, params)
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func (f *fakeTwilio) FetchAccount(sid string) (*openapi.ApiV2010Account, error) {
	status := f.accountSt
	return &openapi.ApiV2010Account{Status: &status}, nil
}

func completeTwilioConfig() TwilioConfig {
	return TwilioConfig{AccountSID: "AC1", AuthToken: "secret", FromNumber: "+15550000000", Probe: true}
}

func mustContact(t *testing.T, raw, carrier string) Contact {
	t.Helper()
	c, err := ParseContact(raw, carrier)
	require.NoError(t, err)
	return c
}

func TestTwilioSend(t *testing.T) {
	api := &fakeTwilio{}
	p := newTwilioWithAPI(completeTwilioConfig(), api, zap.NewNop())

	res, err := p.Send(context.Background(), mustContact(t, "5551234567", ""), "hello")
	require.NoError(t, err)
	assert.Equal(t, BackendTwilio, res.Backend)
	assert.Equal(t, "SM123", res.MessageID)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "+15551234567", *api.sent[0].To)
	assert.Equal(t, "+15550000000", *api.sent[0].From)
}

func TestTwilioSendRejectsEmail(t *testing.T) {
	p := newTwilioWithAPI(completeTwilioConfig(), &fakeTwilio{}, zap.NewNop())
	_, err := p.Send(context.Background(), mustContact(t, "joe@example.com", ""), "hello")
	assert.ErrorIs(t, err, ErrInvalidContact)
}

func TestTwilioMissingCredentials(t *testing.T) {
	p := NewTwilio(TwilioConfig{AccountSID: "AC1"}, zap.NewNop())

	_, err := p.Send(context.Background(), mustContact(t, "5551234567", ""), "hello")
	assert.ErrorIs(t, err, ErrConfiguration)

	report := p.Diagnose(context.Background())
	assert.False(t, report.Configured)
	assert.Equal(t, []string{"TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER"}, report.Missing())
	assert.Empty(t, report.Probe)
}

func TestTwilioDiagnoseAccountCheck(t *testing.T) {
	p := newTwilioWithAPI(completeTwilioConfig(), &fakeTwilio{accountSt: "active"}, zap.NewNop())
	report := p.Diagnose(context.Background())
	assert.True(t, report.Configured)
	assert.Equal(t, "ok", report.Probe)

	suspended := newTwilioWithAPI(completeTwilioConfig(), &fakeTwilio{accountSt: "suspended"}, zap.NewNop())
	report = suspended.Diagnose(context.Background())
	assert.Equal(t, "failed", report.Probe)
	assert.Equal(t, "account status suspended", report.Error)
}

func TestTwilioSendHonorsContext(t *testing.T) {
	api := &fakeTwilio{block: make(chan struct{})}
	defer close(api.block)
	p := newTwilioWithAPI(completeTwilioConfig(), api, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Send(ctx, mustContact(t, "5551234567", ""), "hello")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestClassifyTwilio(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{&twilioclient.TwilioRestError{Code: 21211, Status: 400}, KindInvalidContact},
		{&twilioclient.TwilioRestError{Code: 21610, Status: 400}, KindInvalidContact},
		{&twilioclient.TwilioRestError{Code: 20003, Status: 401}, KindConfiguration},
		{&twilioclient.TwilioRestError{Code: 21606, Status: 400}, KindConfiguration},
		{&twilioclient.TwilioRestError{Code: 0, Status: 403}, KindConfiguration},
		{&twilioclient.TwilioRestError{Code: 20429, Status: 429}, KindBackendUnavailable},
		{&twilioclient.TwilioRestError{Code: 0, Status: 503}, KindBackendUnavailable},
		{errors.New("dial tcp: i/o timeout"), KindBackendUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, Kind(classifyTwilio(tc.err)), tc.err.Error())
	}
}

func TestGatewaySend(t *testing.T) {
	mailer := &email.RecordingProvider{}
	carriers := config.NewStaticCarrierConfigHolder(config.DefaultCarrierConfig())
	p := NewGateway(mailer, carriers, zap.NewNop())

	res, err := p.Send(context.Background(), mustContact(t, "1 (555) 123-4567", "Verizon"), "hello")
	require.NoError(t, err)
	assert.Equal(t, BackendEmailGateway, res.Backend)

	msgs := mailer.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"5551234567@vtext.com"}, msgs[0].To)
	assert.Equal(t, "hello", msgs[0].Body)
}

func TestGatewayRejects(t *testing.T) {
	carriers := config.NewStaticCarrierConfigHolder(config.DefaultCarrierConfig())
	p := NewGateway(&email.RecordingProvider{}, carriers, zap.NewNop())
	ctx := context.Background()

	_, err := p.Send(ctx, mustContact(t, "5551234567", ""), "hello")
	assert.ErrorIs(t, err, ErrInvalidContact)

	_, err = p.Send(ctx, mustContact(t, "5551234567", "pigeon"), "hello")
	assert.ErrorIs(t, err, ErrInvalidContact)

	_, err = p.Send(ctx, mustContact(t, "+442079460958", "att"), "hello")
	assert.ErrorIs(t, err, ErrInvalidContact)
}

func TestGatewayMapsMailErrors(t *testing.T) {
	carriers := config.NewStaticCarrierConfigHolder(config.DefaultCarrierConfig())
	contact := mustContact(t, "5551234567", "att")

	cases := map[error]error{
		email.ErrAuthFailed:        ErrConfiguration,
		email.ErrNotConfigured:     ErrConfiguration,
		email.ErrRecipientRejected: ErrInvalidContact,
		email.ErrUnavailable:       ErrBackendUnavailable,
	}
	for mailErr, want := range cases {
		p := NewGateway(&email.RecordingProvider{Err: mailErr}, carriers, zap.NewNop())
		_, err := p.Send(context.Background(), contact, "hello")
		assert.ErrorIs(t, err, want, mailErr.Error())
	}
}

func TestEmailBackend(t *testing.T) {
	mailer := &email.RecordingProvider{}
	p := NewEmail(mailer, zap.NewNop())

	_, err := p.Send(context.Background(), mustContact(t, "5551234567", ""), "hello")
	assert.ErrorIs(t, err, ErrInvalidContact)

	_, err = p.Send(context.Background(), mustContact(t, "joe@example.com", ""), "hello")
	require.NoError(t, err)
	require.Len(t, mailer.Messages(), 1)
	assert.Equal(t, defaultEmailSubject, mailer.Messages()[0].Subject)

	report := p.Diagnose(context.Background())
	assert.True(t, report.Configured)
	assert.Equal(t, "ok", report.Probe)
}

func TestDiagnoseMailerAuthFailure(t *testing.T) {
	report := NewEmail(&email.RecordingProvider{Err: email.ErrAuthFailed}, zap.NewNop()).Diagnose(context.Background())
	assert.True(t, report.Configured)
	assert.Equal(t, "failed", report.Probe)
	assert.Equal(t, KindConfiguration, report.Error)
}

func TestLogProvider(t *testing.T) {
	p := NewLog(zap.NewNop())
	res, err := p.Send(context.Background(), mustContact(t, "5551234567", ""), "hello")
	require.NoError(t, err)
	assert.Equal(t, "log-1", res.MessageID)
	assert.Len(t, p.Messages(), 1)
	assert.True(t, p.Diagnose(context.Background()).Configured)
}

func TestNewFromConfig(t *testing.T) {
	carriers := config.NewStaticCarrierConfigHolder(config.DefaultCarrierConfig())
	params := Params{Log: zap.NewNop(), Mailer: &email.RecordingProvider{}, Carriers: carriers}

	params.Config.Dispatch.Backend = config.BackendLog
	p, err := NewFromConfig(params)
	require.NoError(t, err)
	assert.Equal(t, BackendLog, p.Name())

	params.Config.Dispatch.Backend = "pigeon"
	_, err = NewFromConfig(params)
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, KindBackendUnavailable, Kind(context.DeadlineExceeded))
	assert.True(t, IsConfiguration(errors.Join(errors.New("x"), ErrConfiguration)))
}

func TestNewFromConfigSkipsLiveCheck(t *testing.T) {
	mailer := &verifyCountingMailer{}
	params := Params{
		Log:      zap.NewNop(),
		Mailer:   mailer,
		Carriers: config.NewStaticCarrierConfigHolder(config.DefaultCarrierConfig()),
	}
	params.Config.Dispatch.Backend = config.BackendEmail
	params.Config.Dispatch.Timeout = time.Second

	p, err := NewFromConfig(params)
	require.NoError(t, err)
	assert.Zero(t, mailer.verifies)

	report := CheckConfig(p)
	assert.True(t, report.Configured)
	assert.Empty(t, report.Probe)
	assert.Zero(t, mailer.verifies)

	assert.Equal(t, "ok", p.Diagnose(context.Background()).Probe)
	assert.Equal(t, 1, mailer.verifies)
}

func TestCheckConfigReportsMissingSettings(t *testing.T) {
	p := WithTimeout(NewTwilio(TwilioConfig{AccountSID: "AC1", Probe: true}, zap.NewNop()), time.Second)
	report := CheckConfig(p)
	assert.False(t, report.Configured)
	assert.Equal(t, []string{"TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER"}, report.Missing())
	assert.Equal(t, "missing TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER", report.Error)

	assert.True(t, CheckConfig(NewLog(zap.NewNop())).Configured)
}
