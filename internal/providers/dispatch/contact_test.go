package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContactPhone(t *testing.T) {
	cases := map[string]string{
		"5551234567":       "+15551234567",
		"(555) 123-4567":   "+15551234567",
		"1-555-123-4567":   "+15551234567",
		"+44 20 7946 0958": "+442079460958",
	}
	for in, want := range cases {
		contact, err := ParseContact(in, "")
		require.NoError(t, err, in)
		assert.Equal(t, want, contact.Phone, in)
		assert.True(t, contact.IsPhone())
	}
}

func TestParseContactRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "555-1234", "25551234567", "555x123x4567", "not an email@", "joe@localhost"} {
		_, err := ParseContact(in, "")
		assert.ErrorIs(t, err, ErrInvalidContact, in)
	}
}

func TestParseContactEmail(t *testing.T) {
	contact, err := ParseContact(" Joe@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, "joe@example.com", contact.Email)
	assert.False(t, contact.IsPhone())
}

func TestNationalUS(t *testing.T) {
	contact, err := ParseContact("15551234567", "ATT")
	require.NoError(t, err)
	national, ok := contact.NationalUS()
	assert.True(t, ok)
	assert.Equal(t, "5551234567", national)
	assert.Equal(t, "att", contact.Carrier)

	intl, err := ParseContact("+442079460958", "")
	require.NoError(t, err)
	_, ok = intl.NationalUS()
	assert.False(t, ok)
}

func TestMaskContact(t *testing.T) {
	assert.Equal(t, "***4567", MaskContact("5551234567"))
	assert.Equal(t, "j***@example.com", MaskContact("joe@example.com"))
	assert.Equal(t, "***", MaskContact("123"))
}
