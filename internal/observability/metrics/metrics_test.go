package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("backend", "twilio"),
		attribute.String("short_code", "ab3k9qz"),
		attribute.String("customer_contact", "+15551234567"),
		attribute.String("outcome", "sent"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("backend"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordGenerated(ctx, "att")
		m.RecordDispatch(ctx, "log", "sent")
		m.RecordClick(ctx, true)
		m.RecordCodeCollision(ctx)
	})
}

func TestHTTPMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	httpMetrics := NewHTTPMetrics(registry)

	router := gin.New()
	router.Use(httpMetrics.GinMiddleware())
	router.GET("/r/:code", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/r/ab3k9qz", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `route="/r/:code"`)
	assert.NotContains(t, body, "ab3k9qz")
}
