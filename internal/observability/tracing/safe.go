package tracing

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"customer_contact": {},
	"review_text":      {},
	"short_code":       {},
	"http.url":         {},
	"http.target":      {},
}

// SafeAttributes drops attributes that may carry customer data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\-\s().]{7,}\d`)
)

// SafeError returns a copy of err with contacts masked. Nil in, nil out.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(RedactText(err.Error()))
}

// RedactText masks e-mail addresses and phone numbers.
func RedactText(text string) string {
	text = emailPattern.ReplaceAllString(text, "[redacted-email]")
	text = phonePattern.ReplaceAllString(text, "[redacted-phone]")
	return strings.TrimSpace(text)
}

// ExtractContext reads remote span context and baggage from the carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
