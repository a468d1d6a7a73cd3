package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/reviewboost/internal/observability/logger"
	"github.com/smallbiznis/reviewboost/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	rateLimitEndpointRedirect = "redirect"
	rateLimitEndpointTestSend = "dispatch_test"
)

// tokenVerifier checks merchant bearer tokens against a bcrypt hash. The
// digest of the last accepted token is kept so repeated calls skip bcrypt.
type tokenVerifier struct {
	hash     []byte
	accepted atomic.Pointer[[sha256.Size]byte]
}

func newTokenVerifier(hash string) *tokenVerifier {
	return &tokenVerifier{hash: []byte(strings.TrimSpace(hash))}
}

func (v *tokenVerifier) Verify(token string) bool {
	if len(v.hash) == 0 || token == "" {
		return false
	}
	digest := sha256.Sum256([]byte(token))
	if last := v.accepted.Load(); last != nil && subtle.ConstantTimeCompare(last[:], digest[:]) == 1 {
		return true
	}
	if bcrypt.CompareHashAndPassword(v.hash, []byte(token)) != nil {
		return false
	}
	v.accepted.Store(&digest)
	return true
}

// APITokenRequired guards the merchant API. Without a configured hash the API
// is open outside production and closed in production.
func (s *Server) APITokenRequired() gin.HandlerFunc {
	verifier := newTokenVerifier(s.cfg.Auth.APITokenHash)
	open := s.cfg.Auth.APITokenHash == "" && !s.cfg.IsProduction()

	return func(c *gin.Context) {
		if open {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || !verifier.Verify(token) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RedirectRateLimit throttles the public redirect per client IP. Limiter
// failures let the request through.
func (s *Server) RedirectRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.AllowRedirect(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("redirect rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			s.denyRateLimit(c, rateLimitEndpointRedirect, result)
			return
		}
		c.Next()
	}
}

// TestSendRateLimit throttles real test sends per caller.
func (s *Server) TestSendRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.AllowTestSend(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("test send rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.denyRateLimit(c, rateLimitEndpointTestSend, result)
			return
		}
		c.Next()
	}
}

func (s *Server) denyRateLimit(c *gin.Context, endpoint string, result ratelimit.Result) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("rate limit exceeded", zap.String("endpoint", endpoint))
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	AbortWithError(c, ErrRateLimited)
}
