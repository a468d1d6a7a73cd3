package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/reviewboost/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyRedirect     = "reviewboost:redirect:ip:%s"
	keyTestSend     = "reviewboost:dispatch:test:%s"
	keyDispatchLock = "reviewboost:dispatch:lock:%s"
)

// Limiter guards the public redirect and the test-send endpoint, and
// serializes dispatch of a single review request across instances. A nil or
// disabled Limiter allows everything.
type Limiter struct {
	enabled bool
	client  *redis.Client

	bucket *TokenBucket
	locker *Locker

	redirectRate  float64
	redirectBurst int
	testSendRate  float64
	testSendBurst int
	lockTTL       time.Duration
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

func NewLimiter(p Params) (*Limiter, error) {
	limitCfg := p.Config.RateLimit
	log := p.Log.Named("ratelimit")
	if !limitCfg.Enabled {
		log.Info("rate limiting disabled")
		return &Limiter{}, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.RedirectRate <= 0 || limitCfg.RedirectBurst <= 0 {
		return nil, errors.New("redirect rate limit must be positive")
	}
	if limitCfg.TestSendRate <= 0 || limitCfg.TestSendBurst <= 0 {
		return nil, errors.New("test send rate limit must be positive")
	}
	if limitCfg.DispatchLockTTLSeconds <= 0 {
		return nil, errors.New("dispatch lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	l := &Limiter{
		enabled:       true,
		client:        client,
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		redirectRate:  limitCfg.RedirectRate,
		redirectBurst: limitCfg.RedirectBurst,
		testSendRate:  limitCfg.TestSendRate,
		testSendBurst: limitCfg.TestSendBurst,
		lockTTL:       time.Duration(limitCfg.DispatchLockTTLSeconds) * time.Second,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("rate limit redis: %w", err)
			}
			log.Info("rate limiting enabled", zap.String("redis_addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return l, nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *Limiter) AllowRedirect(ctx context.Context, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRedirect, strings.TrimSpace(clientIP)), l.redirectRate, l.redirectBurst)
}

func (l *Limiter) AllowTestSend(ctx context.Context, caller string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyTestSend, strings.TrimSpace(caller)), l.testSendRate, l.testSendBurst)
}

// TryLockRequest claims the dispatch of one review request. When disabled it
// always succeeds with an empty token.
func (l *Limiter) TryLockRequest(ctx context.Context, requestID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyDispatchLock, requestID), l.lockTTL)
}

func (l *Limiter) ReleaseRequest(ctx context.Context, requestID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyDispatchLock, requestID), token)
}
