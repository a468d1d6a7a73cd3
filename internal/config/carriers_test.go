package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarrierConfigLookup(t *testing.T) {
	holder := NewStaticCarrierConfigHolder(DefaultCarrierConfig())
	cfg := holder.Get()

	carrier, ok := cfg.Lookup(" TMobile ")
	require.True(t, ok)
	assert.Equal(t, "tmomail.net", carrier.Gateway)

	_, ok = cfg.Lookup("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"att", "sprint", "tmobile", "verizon"}, cfg.Keys())
}

func TestValidateCarrierConfig(t *testing.T) {
	assert.Error(t, validateCarrierConfig(CarrierConfig{}))

	dup := normalizeCarrierConfig(CarrierConfig{Carriers: []Carrier{
		{Key: "att", Gateway: "txt.att.net"},
		{Key: "ATT", Gateway: "txt.att.net"},
	}})
	assert.Error(t, validateCarrierConfig(dup))

	missing := normalizeCarrierConfig(CarrierConfig{Carriers: []Carrier{{Key: "att"}}})
	assert.Error(t, validateCarrierConfig(missing))

	assert.NoError(t, validateCarrierConfig(DefaultCarrierConfig()))
}

func TestNormalizeBackend(t *testing.T) {
	cases := map[string]string{
		"":               BackendTwilio,
		"Twilio":         BackendTwilio,
		"email-gateway":  BackendEmailGateway,
		"gateway":        BackendEmailGateway,
		"smtp":           BackendEmail,
		"noop":           BackendLog,
		"carrier-pigeon": "carrier_pigeon",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeBackend(in), in)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISPATCH_BACKEND", "email")
	t.Setenv("SMTP_USER", "owner@example.com")
	t.Setenv("DISPATCH_TIMEOUT", "5")
	t.Setenv("BASE_URL", "https://rb.example.com/")

	cfg := Load()
	assert.Equal(t, BackendEmail, cfg.Dispatch.Backend)
	assert.Equal(t, "owner@example.com", cfg.Email.SMTPFrom)
	assert.Equal(t, 5.0, cfg.Dispatch.Timeout.Seconds())
	assert.Equal(t, "https://rb.example.com", cfg.BaseURL)
	assert.Equal(t, 7, cfg.ShortCode.Length)
}
