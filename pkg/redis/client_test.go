package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	data    map[string]string
	counts  map[string]int64
	expires map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:    make(map[string]string),
		counts:  make(map[string]int64),
		expires: make(map[string]time.Duration),
	}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, taken := f.data[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStore()
	client := &Client{store: fake}

	// First two requests fit in a limit of 2.
	for want := int64(1); want <= 2; want++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
		if err != nil {
			t.Fatalf("FixedWindowAllow: %v", err)
		}
		if !allowed || count != want {
			t.Fatalf("request %d: allowed=%v count=%d", want, allowed, count)
		}
	}

	// TTL is attached only when the window opens.
	if n := len(fake.expires); n != 1 {
		t.Fatalf("expire set %d times, want 1", n)
	}

	allowed, _, err := client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
	if err != nil {
		t.Fatalf("FixedWindowAllow: %v", err)
	}
	if allowed {
		t.Fatal("third request should exceed the limit")
	}
}

func TestSetNXGuardsDuplicates(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	key := client.IdempotencyKey("stripe_webhook", "evt_123")

	claim := func() bool {
		t.Helper()
		won, err := client.SetNX(ctx, key, "1", time.Hour)
		if err != nil {
			t.Fatalf("SetNX: %v", err)
		}
		return won
	}

	if !claim() {
		t.Fatal("first claim should win")
	}
	if claim() {
		t.Fatal("duplicate claim should lose")
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if !claim() {
		t.Fatal("claim should win again after release")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}

	cases := []struct {
		got  string
		want string
	}{
		{client.IdempotencyKey("stripe_webhook", "evt_1"), "cf:idempotency:stripe_webhook:evt_1"},
		{client.RateLimitKey("ip:127.0.0.1"), "cf:rate_limit:ip:127.0.0.1"},
		// Empty segments collapse instead of producing "a::b".
		{client.IdempotencyKey("stripe_webhook", ""), "cf:idempotency:stripe_webhook"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("key = %q, want %q", tc.got, tc.want)
		}
	}
}
