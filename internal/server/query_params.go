package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseSnowflakeID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return parsed, nil
}

// requestBaseURL derives the public origin from the request when BASE_URL is
// not configured. X-Forwarded-Proto is honored for TLS-terminating proxies.
func (s *Server) requestBaseURL(c *gin.Context) string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	host := c.Request.Host
	if forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-Host")); forwarded != "" {
		host = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + host
}

func wantsJSON(c *gin.Context) bool {
	accept := strings.ToLower(c.GetHeader("Accept"))
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
