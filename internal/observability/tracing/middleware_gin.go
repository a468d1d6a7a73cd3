package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/reviewboost/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "reviewboost/http"
	unmatchedRoute = "unmatched"
	publicPrefix   = "/r/"
)

// Health and scrape endpoints are polled constantly and never traced.
var untracedPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// GinMiddleware opens a server span per request. Spans are named after the
// route template, so short codes never reach the tracing backend.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		if _, skip := untracedPaths[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, spanName(c.Request.Method, ""), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		span.SetName(spanName(c.Request.Method, route))
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Bool("reviewboost.public", strings.HasPrefix(route, publicPrefix)),
		)...)

		if status < http.StatusInternalServerError {
			return
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func spanName(method, route string) string {
	name := "HTTP " + strings.ToUpper(method)
	if route != "" {
		name += " " + route
	}
	return name
}
