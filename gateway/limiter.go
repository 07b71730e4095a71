package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter 控制请求速率，避免触发交易所限流。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// NewTokenBucketLimiter 每秒 r 个请求，允许突发 burst 个。
func NewTokenBucketLimiter(r float64, burst int) *rate.Limiter {
	if r <= 0 {
		r = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r), burst)
}

type noLimit struct{}

func (noLimit) Wait(context.Context) error { return nil }
