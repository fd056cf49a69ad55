package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type page struct {
	Title  string    `json:"title"`
	Values []float64 `json:"values"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache[page](client, "indicadores", time.Hour, nil)

	c.Set("emprego", page{Title: "Emprego", Values: []float64{1, 2}})
	got, ok := c.Get("emprego")
	if !ok || got.Title != "Emprego" || len(got.Values) != 2 {
		t.Fatalf("got %+v, %v", got, ok)
	}
	if !mr.Exists("indicadores:emprego") {
		t.Fatalf("expected namespaced key")
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := c.Get("emprego"); ok {
		t.Fatalf("expected TTL expiry")
	}
}

func TestRedisCacheDeletePrefix(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewRedisCache[int](client, "ns", time.Hour, nil)
	c.Set("dataset:seguranca:a", 1)
	c.Set("dataset:seguranca:b", 2)
	c.Set("dataset:saude:a", 3)
	if n := c.DeletePrefix("dataset:seguranca:"); n != 2 {
		t.Fatalf("removed %d", n)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestRedisCacheUnavailableIsMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache[int](client, "ns", time.Hour, nil)
	mr.Close()
	c.Set("k", 1)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss with redis down")
	}
}

func TestTieredPopulatesLocal(t *testing.T) {
	_, client := newTestRedis(t)
	shared := NewRedisCache[int](client, "ns", time.Hour, nil)
	shared.Set("k", 42)

	local := NewLRUCache[int](10, time.Minute)
	tiered := NewTiered[int](local, shared)
	if v, ok := tiered.Get("k"); !ok || v != 42 {
		t.Fatalf("got %d, %v", v, ok)
	}
	if v, ok := local.Get("k"); !ok || v != 42 {
		t.Fatalf("local tier not populated")
	}
}
