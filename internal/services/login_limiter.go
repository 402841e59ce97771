package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/caching"
	"maclink/internal/config"
)

// LoginLimiter guards the login endpoint against brute force. Counters live
// in Redis so every API instance shares them.
type LoginLimiter interface {
	// Check returns a TooManyRequestsError while any limiter blocks the caller.
	Check(ctx context.Context, username, ip string) error
	// RegisterFailure counts a failed attempt. Blocks take effect on the next
	// Check.
	RegisterFailure(ctx context.Context, username, ip string)
	RegisterSuccess(ctx context.Context, username, ip string)
}

type limiter struct {
	prefix   string
	points   int64
	duration time.Duration
	block    time.Duration
}

type loginLimiter struct {
	cache  caching.CacheService
	logger *zap.Logger

	failByIP            limiter
	consecutiveFailByID limiter
	failByID            limiter
	loginByID           limiter
}

func NewLoginLimiter(cache caching.CacheService, cfg config.SecurityConfig, logger *zap.Logger) LoginLimiter {
	day := 24 * time.Hour
	return &loginLimiter{
		cache:  cache,
		logger: logger,
		failByIP: limiter{
			prefix: "login-fail-ip-per-day", points: int64(cfg.MaxWrongAttemptsByIPPerDay),
			duration: day, block: cfg.BlockDuration,
		},
		consecutiveFailByID: limiter{
			prefix: "login-fail-consecutive-unique-id-and-ip", points: int64(cfg.MaxConsecutiveFailsByUsernameAndIP),
			duration: 90 * day, block: cfg.BlockDuration,
		},
		failByID: limiter{
			prefix: "login-fail-unique-id-per-day", points: int64(cfg.MaxWrongAttemptsByUsernamePerDay),
			duration: day, block: cfg.BlockDuration,
		},
		loginByID: limiter{
			prefix: "login-unique-id-per-day", points: int64(cfg.MaxLoginByUsernamePerDay),
			duration: day, block: cfg.BlockDuration,
		},
	}
}

func (l limiter) countKey(id string) string { return l.prefix + ":" + id }
func (l limiter) blockKey(id string) string { return l.prefix + ":blocked:" + id }

// blocked returns how long id stays blocked, zero when it is not.
func (l *loginLimiter) blocked(ctx context.Context, lim limiter, id string) (time.Duration, error) {
	_, err := l.cache.Get(ctx, lim.blockKey(id))
	if errors.Is(err, caching.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ttl, err := l.cache.TTL(ctx, lim.blockKey(id))
	if err != nil || ttl <= 0 {
		return lim.block, err
	}
	return ttl, nil
}

// consume spends one point and starts a block once the budget is used up.
func (l *loginLimiter) consume(ctx context.Context, lim limiter, id string) error {
	count, err := l.cache.IncrWithExpiry(ctx, lim.countKey(id), lim.duration)
	if err != nil {
		return err
	}
	if lim.points <= 0 || count < lim.points {
		return nil
	}
	if err := l.cache.Set(ctx, lim.blockKey(id), "1", lim.block); err != nil {
		return err
	}
	return l.cache.Delete(ctx, lim.countKey(id))
}

func (l *loginLimiter) Check(ctx context.Context, username, ip string) error {
	checks := []struct {
		lim limiter
		id  string
	}{
		{l.failByIP, ip},
		{l.consecutiveFailByID, username + "_" + ip},
		{l.failByID, username},
		{l.loginByID, username},
	}
	for _, c := range checks {
		retry, err := l.blocked(ctx, c.lim, c.id)
		if err != nil {
			// a Redis outage must not lock everyone out
			l.logger.Warn("login limiter unavailable", zap.String("limiter", c.lim.prefix), zap.Error(err))
			return nil
		}
		if retry > 0 {
			return apperrors.TooManyRequests(retry)
		}
	}
	return nil
}

func (l *loginLimiter) RegisterFailure(ctx context.Context, username, ip string) {
	for _, c := range []struct {
		lim limiter
		id  string
	}{
		{l.failByIP, ip},
		{l.consecutiveFailByID, username + "_" + ip},
		{l.failByID, username},
	} {
		if err := l.consume(ctx, c.lim, c.id); err != nil {
			l.logger.Warn("login limiter unavailable", zap.String("limiter", c.lim.prefix), zap.Error(err))
		}
	}
}

// RegisterSuccess clears the consecutive failure streak and spends one of the
// daily logins. The login that uses up the budget still succeeds.
func (l *loginLimiter) RegisterSuccess(ctx context.Context, username, ip string) {
	if err := l.cache.Delete(ctx, l.consecutiveFailByID.countKey(username+"_"+ip)); err != nil {
		l.logger.Warn("login limiter reset failed", zap.Error(err))
	}
	if err := l.consume(ctx, l.loginByID, username); err != nil {
		l.logger.Warn("login limiter unavailable", zap.String("limiter", l.loginByID.prefix), zap.Error(err))
	}
}
