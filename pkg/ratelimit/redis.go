package ratelimit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// RedisKeySlot holds the owner of the current call slot. Its TTL is the
// remaining time before the next slot may be taken.
const RedisKeySlot = "crm:throttle:slot"

// minPoll bounds how often a waiter re-checks a slot whose TTL is unknown.
const minPoll = 10 * time.Millisecond

// RedisSpacer spaces outbound calls across every proxy instance sharing a
// Redis. A slot is taken with SET NX PX <interval>; losers sleep for the
// key's remaining TTL and try again.
type RedisSpacer struct {
	redis    redis.Cmdable
	interval time.Duration
	owner    string
	logger   zerolog.Logger
}

// NewRedisSpacer creates a Redis-backed spacer.
func NewRedisSpacer(redisClient redis.Cmdable, interval time.Duration, logger zerolog.Logger) *RedisSpacer {
	return &RedisSpacer{
		redis:    redisClient,
		interval: interval,
		owner:    ksuid.New().String(),
		logger:   logger,
	}
}

// Wait implements Throttle.
func (r *RedisSpacer) Wait(ctx context.Context) error {
	start := time.Now()
	err := r.acquire(ctx)
	observeWait(ModeRedis, start, err)
	return err
}

func (r *RedisSpacer) acquire(ctx context.Context) error {
	if r.interval <= 0 {
		return ctx.Err()
	}

	for attempt := 1; ; attempt++ {
		ok, err := r.redis.SetNX(ctx, RedisKeySlot, r.owner, r.interval).Result()
		if err != nil {
			r.logger.Error().Err(err).Msg("Throttle slot reservation failed")
			return errors.Wrap(err, "reserve throttle slot")
		}
		if ok {
			if attempt > 1 {
				r.logger.Debug().
					Int("attempt", attempt).
					Msg("Throttle slot acquired after waiting")
			}
			return nil
		}

		ttl, err := r.redis.PTTL(ctx, RedisKeySlot).Result()
		if err != nil {
			r.logger.Error().Err(err).Msg("Throttle slot TTL lookup failed")
			return errors.Wrap(err, "read throttle slot ttl")
		}
		if ttl < minPoll {
			ttl = minPoll
		}

		if err := sleepContext(ctx, ttl); err != nil {
			return err
		}
	}
}
