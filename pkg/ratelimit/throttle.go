// Package ratelimit paces outbound CRM calls.
//
// Every outbound call waits on a Throttle first. The default is a plain
// fixed delay per call; the process and redis modes additionally space
// calls across all concurrent request sequences, within one process or
// across every proxy instance sharing a Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultDelay is the pause observed before every outbound call.
const DefaultDelay = 1200 * time.Millisecond

var (
	throttleWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_throttle_wait_seconds",
		Help:    "Time spent waiting on the throttle before an outbound CRM call",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 1.2, 2, 5, 10},
	}, []string{"mode"})

	throttleErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_throttle_errors_total",
		Help: "Throttle failures (cancelled waits, backend errors) by mode",
	}, []string{"mode"})
)

// Throttle gates outbound calls. Wait blocks until the caller may issue
// its next call or ctx is done.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Mode selects how widely the delay is enforced.
type Mode string

const (
	// ModeSequence delays each call of a request sequence; sequences do not see each other.
	ModeSequence Mode = "sequence"

	// ModeProcess additionally spaces calls from all sequences in this process.
	ModeProcess Mode = "process"

	// ModeRedis additionally spaces calls from all proxy instances sharing a Redis.
	ModeRedis Mode = "redis"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSequence, ModeProcess, ModeRedis:
		return true
	}
	return false
}

// New builds the throttle for a mode. redisClient is only required for ModeRedis.
func New(mode Mode, delay time.Duration, redisClient redis.Cmdable, logger zerolog.Logger) (Throttle, error) {
	if delay < 0 {
		return nil, errors.Newf("throttle delay must not be negative (got %s)", delay)
	}

	switch mode {
	case ModeSequence, "":
		return NewFixedDelay(delay), nil
	case ModeProcess:
		return Chain{NewFixedDelay(delay), NewSpacer(delay)}, nil
	case ModeRedis:
		if redisClient == nil {
			return nil, errors.New("redis throttle mode requires a redis client")
		}
		return Chain{NewFixedDelay(delay), NewRedisSpacer(redisClient, delay, logger)}, nil
	default:
		return nil, errors.Newf("unknown throttle mode %q", mode)
	}
}

// FixedDelay sleeps a constant duration on every Wait.
type FixedDelay struct {
	Delay time.Duration
}

// NewFixedDelay returns a FixedDelay throttle.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{Delay: delay}
}

// Wait implements Throttle.
func (f *FixedDelay) Wait(ctx context.Context) error {
	start := time.Now()
	err := sleepContext(ctx, f.Delay)
	observeWait(ModeSequence, start, err)
	return err
}

// Spacer hands out call slots at least Interval apart to every caller in
// the process. Slots are reserved under a mutex and waited for outside it.
type Spacer struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
	now  func() time.Time
}

// NewSpacer returns a process-wide Spacer.
func NewSpacer(interval time.Duration) *Spacer {
	return &Spacer{interval: interval, now: time.Now}
}

// Wait implements Throttle.
func (s *Spacer) Wait(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	now := s.now()
	slot := s.next
	if slot.Before(now) {
		slot = now
	}
	s.next = slot.Add(s.interval)
	s.mu.Unlock()

	err := sleepContext(ctx, slot.Sub(now))
	observeWait(ModeProcess, start, err)
	return err
}

// Chain waits on each throttle in order.
type Chain []Throttle

// Wait implements Throttle.
func (c Chain) Wait(ctx context.Context) error {
	for _, t := range c {
		if err := t.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ThrottleFunc adapts a function to the Throttle interface.
type ThrottleFunc func(ctx context.Context) error

// Wait implements Throttle.
func (f ThrottleFunc) Wait(ctx context.Context) error {
	return f(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "throttle wait")
	case <-timer.C:
		return nil
	}
}

func observeWait(mode Mode, start time.Time, err error) {
	if err != nil {
		throttleErrorsTotal.WithLabelValues(string(mode)).Inc()
		return
	}
	throttleWaitSeconds.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
}
