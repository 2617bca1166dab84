package middleware

import (
	"fmt"
	"net/http"
	"time"

	libredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitOptions configures the per-IP limiter on the OTP endpoints.
// With RedisAddr set the counters are shared across instances; otherwise
// an in-memory store is used.
type RateLimitOptions struct {
	Requests      int64
	Period        time.Duration
	RedisAddr     string
	RedisPassword string
}

// NewRateLimit builds a rate-limiting middleware.
func NewRateLimit(opts RateLimitOptions, log *logrus.Logger) (func(http.Handler) http.Handler, error) {
	if opts.Requests <= 0 {
		opts.Requests = 10
	}
	if opts.Period <= 0 {
		opts.Period = 10 * time.Minute
	}
	rate := limiter.Rate{
		Period: opts.Period,
		Limit:  opts.Requests,
	}

	var store limiter.Store
	if opts.RedisAddr != "" {
		client := libredis.NewClient(&libredis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
		})
		redisStore, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix: "bazarcheh:ratelimit",
		})
		if err != nil {
			return nil, fmt.Errorf("create redis rate-limit store: %w", err)
		}
		store = redisStore
		log.WithField("addr", opts.RedisAddr).Info("rate limiter using redis store")
	} else {
		store = memory.NewStore()
	}

	mw := mhttp.NewMiddleware(limiter.New(store, rate))
	return mw.Handler, nil
}
