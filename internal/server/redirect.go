package server

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/reviewboost/internal/redirect"
	"go.uber.org/zap"
)

// Redirect serves a public short link. Every failure looks the same to the
// caller.
func (s *Server) Redirect(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("X-Robots-Tag", "noindex")

	payload, err := s.redirectSvc.ResolveAndMark(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.redirectNotFound(c)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, payload)
		return
	}

	var buf bytes.Buffer
	if err := s.renderLanding(&buf, payload); err != nil {
		s.log.Error("render landing page failed", zap.Error(err))
		s.redirectNotFound(c)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) redirectNotFound(c *gin.Context) {
	if wantsJSON(c) {
		AbortWithError(c, ErrNotFound)
		return
	}
	var buf bytes.Buffer
	if err := redirect.RenderNotFound(&buf); err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.Data(http.StatusNotFound, "text/html; charset=utf-8", buf.Bytes())
}
