//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisSpacer_Integration_SpacesInstances(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	interval := 100 * time.Millisecond
	const instances = 3

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		times []time.Time
	)

	start := time.Now()
	for i := 0; i < instances; i++ {
		spacer := NewRedisSpacer(redisClient, interval, zerolog.Nop())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := spacer.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error = %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(times) != instances {
		t.Fatalf("got %d acquisitions, want %d", len(times), instances)
	}

	latest := times[0]
	for _, ts := range times {
		if ts.After(latest) {
			latest = ts
		}
	}
	if minTotal := time.Duration(instances-1) * interval; latest.Sub(start) < minTotal {
		t.Errorf("last acquisition after %v, want >= %v", latest.Sub(start), minTotal)
	}
}

func TestNew_Integration_RedisMode(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	th, err := New(ModeRedis, 50*time.Millisecond, redisClient, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := th.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// Each Wait includes the fixed 50ms delay.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("three waits took %v, want >= 150ms", elapsed)
	}
}
