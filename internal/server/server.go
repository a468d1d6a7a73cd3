package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/observability"
	obsmiddleware "github.com/smallbiznis/reviewboost/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/reviewboost/internal/observability/metrics"
	obstracing "github.com/smallbiznis/reviewboost/internal/observability/tracing"
	outreachdomain "github.com/smallbiznis/reviewboost/internal/outreach/domain"
	"github.com/smallbiznis/reviewboost/internal/ratelimit"
	"github.com/smallbiznis/reviewboost/internal/redirect"
	redirectdomain "github.com/smallbiznis/reviewboost/internal/redirect/domain"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if httpMetrics != nil {
		r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))
	}

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	outreachSvc outreachdomain.Service
	redirectSvc redirectdomain.Service
	requestSvc  reviewdomain.Service
	businessSvc businessdomain.Service
	limiter     *ratelimit.Limiter
	obsMetrics  *obsmetrics.Metrics

	renderLanding func(io.Writer, redirectdomain.Payload) error
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	OutreachSvc outreachdomain.Service
	RedirectSvc redirectdomain.Service
	RequestSvc  reviewdomain.Service
	BusinessSvc businessdomain.Service
	Limiter     *ratelimit.Limiter  `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		outreachSvc: p.OutreachSvc,
		redirectSvc: p.RedirectSvc,
		requestSvc:  p.RequestSvc,
		businessSvc: p.BusinessSvc,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,

		renderLanding: redirect.RenderLanding,
	}

	if p.Cfg.Auth.APITokenHash == "" {
		if p.Cfg.IsProduction() {
			svc.log.Warn("API_TOKEN_HASH is not set; the merchant API rejects every request")
		} else {
			svc.log.Warn("API_TOKEN_HASH is not set; the merchant API is open")
		}
	}

	svc.registerAPIRoutes()
	svc.registerPublicRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.APITokenRequired())

	// -------- Businesses --------
	api.GET("/businesses", s.ListBusinesses)
	api.GET("/businesses/:id/review-requests", s.ListBusinessReviewRequests)
	api.GET("/resolve-place", s.ResolvePlace)
	api.GET("/dashboard", s.GetDashboard)

	// -------- Review requests --------
	api.POST("/generate", s.Generate)
	api.POST("/send", s.Send)
	api.GET("/review-requests/:id", s.GetReviewRequest)
	api.POST("/review-requests/:id/regenerate", s.Regenerate)
	api.DELETE("/review-requests/:id", s.DeleteReviewRequest)

	// -------- Dispatch --------
	api.GET("/carriers", s.ListCarriers)
	api.GET("/dispatch/diagnose", s.DiagnoseDispatch)
	api.POST("/dispatch/test", s.TestSendRateLimit(), s.SendTestMessage)
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/r/:code", s.RedirectRateLimit(), s.Redirect)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
