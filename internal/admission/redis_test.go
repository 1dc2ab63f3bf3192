package admission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, "test"), mr
}

func TestRedisStore_Record(t *testing.T) {
	s, _ := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		count, ok, err := s.Record(ctx, "parse", "10.0.0.1", t0.Add(time.Duration(i)*time.Second), time.Minute, 3)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !ok || count != i+1 {
			t.Fatalf("record %d: got count=%d ok=%v", i, count, ok)
		}
	}

	count, ok, err := s.Record(ctx, "parse", "10.0.0.1", t0.Add(30*time.Second), time.Minute, 3)
	if err != nil || ok || count != 3 {
		t.Fatalf("over limit: got count=%d ok=%v err=%v", count, ok, err)
	}

	// First timestamp ages out exactly one window later.
	count, ok, err = s.Record(ctx, "parse", "10.0.0.1", t0.Add(time.Minute), time.Minute, 3)
	if err != nil || !ok || count != 3 {
		t.Errorf("after slide: got count=%d ok=%v err=%v", count, ok, err)
	}
}

func TestRedisStore_SameInstantUniqueMembers(t *testing.T) {
	s, _ := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, ok, err := s.Record(ctx, "parse", "10.0.0.2", t0, time.Minute, 4); err != nil || !ok {
			t.Fatalf("record %d: ok=%v err=%v", i, ok, err)
		}
	}
	if _, ok, _ := s.Record(ctx, "parse", "10.0.0.2", t0, time.Minute, 4); ok {
		t.Error("fifth record at the same instant should be rejected")
	}
}

func TestRedisStore_Blacklist(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := s.Blacklist(ctx, "10.0.0.3", t0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Blacklist(ctx, "10.0.0.4", t0, time.Hour); err != nil {
		t.Fatal(err)
	}

	if ttl := mr.TTL("test:blacklist:10.0.0.3"); ttl != 0 {
		t.Errorf("permanent entry has ttl %v", ttl)
	}
	if ttl := mr.TTL("test:blacklist:10.0.0.4"); ttl != time.Hour {
		t.Errorf("ttl: got %v, want 1h", ttl)
	}

	mr.FastForward(time.Hour)

	if blocked, err := s.IsBlacklisted(ctx, "10.0.0.3", t0); err != nil || !blocked {
		t.Errorf("permanent entry: blocked=%v err=%v", blocked, err)
	}
	if blocked, _ := s.IsBlacklisted(ctx, "10.0.0.4", t0); blocked {
		t.Error("expired entry still blacklisted")
	}
}

func TestRedisStore_ForgetAndReset(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	s.Record(ctx, "parse", "10.0.0.5", t0, time.Minute, 5)
	s.Record(ctx, "api", "10.0.0.5", t0, time.Minute, 5)
	s.Record(ctx, "parse", "10.0.0.6", t0, time.Minute, 5)
	s.Blacklist(ctx, "10.0.0.5", t0, 0)

	if err := s.Forget(ctx, "10.0.0.5"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("test:blacklist:10.0.0.5") || mr.Exists("test:req:parse:10.0.0.5") || mr.Exists("test:req:api:10.0.0.5") {
		t.Error("forget left keys behind")
	}
	if !mr.Exists("test:req:parse:10.0.0.6") {
		t.Error("forget removed another client's log")
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys after reset: %v", keys)
	}
}

func TestRedisStore_WithController(t *testing.T) {
	s, _ := setupTestRedis(t)
	c := newTestController(t, s, Policy{Name: "parse", MaxRequests: 5, Window: time.Minute, Strict: true})

	for i := 0; i < 5; i++ {
		if out := admit(t, c, "198.51.100.1", t0); out.Decision != Allow {
			t.Fatalf("request %d: got %v", i+1, out.Decision)
		}
	}
	if out := admit(t, c, "198.51.100.1", t0); out.Decision != Denied || !out.NewlyBlacklisted {
		t.Fatalf("sixth: got %+v", out)
	}
	if out := admit(t, c, "198.51.100.1", t0.Add(2*time.Minute)); out.Decision != Denied {
		t.Errorf("later: got %v", out.Decision)
	}
}

func TestNewRedisStore_RequiresAddr(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), RedisConfig{}); err == nil {
		t.Error("expected error for empty address")
	}
}

func TestNewRedisStore_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "svc:"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
