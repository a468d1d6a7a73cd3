package dispatch

import (
	"fmt"
	"net/mail"
	"strings"
)

// Contact is a normalized customer address. Exactly one of Phone or Email is
// set.
type Contact struct {
	Raw string
	// Phone is E.164, e.g. +15551234567.
	Phone   string
	Email   string
	Carrier string
}

func (c Contact) IsPhone() bool { return c.Phone != "" }

// NationalUS returns the 10-digit national number for +1 phones.
func (c Contact) NationalUS() (string, bool) {
	if strings.HasPrefix(c.Phone, "+1") && len(c.Phone) == 12 {
		return c.Phone[2:], true
	}
	return "", false
}

// Masked hides all but the last characters so logs never carry full contacts.
func (c Contact) Masked() string {
	return MaskContact(c.Raw)
}

func MaskContact(raw string) string {
	raw = strings.TrimSpace(raw)
	if at := strings.LastIndex(raw, "@"); at > 0 {
		return raw[:1] + "***" + raw[at:]
	}
	if len(raw) <= 4 {
		return "***"
	}
	return "***" + raw[len(raw)-4:]
}

// ParseContact accepts a phone number (US national, 1-prefixed or E.164) or an
// email address.
func ParseContact(raw, carrier string) (Contact, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Contact{}, fmt.Errorf("%w: empty contact", ErrInvalidContact)
	}
	contact := Contact{Raw: value, Carrier: strings.ToLower(strings.TrimSpace(carrier))}

	if strings.Contains(value, "@") {
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Name != "" {
			return Contact{}, fmt.Errorf("%w: malformed email", ErrInvalidContact)
		}
		at := strings.LastIndex(addr.Address, "@")
		if at <= 0 || !strings.Contains(addr.Address[at+1:], ".") {
			return Contact{}, fmt.Errorf("%w: malformed email", ErrInvalidContact)
		}
		contact.Email = strings.ToLower(addr.Address)
		return contact, nil
	}

	phone, err := normalizePhone(value)
	if err != nil {
		return Contact{}, err
	}
	contact.Phone = phone
	return contact, nil
}

func normalizePhone(value string) (string, error) {
	international := strings.HasPrefix(value, "+")
	var digits strings.Builder
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("%w: unexpected character in phone number", ErrInvalidContact)
		}
	}
	d := digits.String()

	switch {
	case international && len(d) >= 8 && len(d) <= 15 && d[0] != '0':
		return "+" + d, nil
	case !international && len(d) == 10:
		return "+1" + d, nil
	case !international && len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	default:
		return "", fmt.Errorf("%w: phone number must have 10 digits or be in +E.164 form", ErrInvalidContact)
	}
}
