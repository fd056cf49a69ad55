package cache

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"indicadores/internal/core"
)

type countingObserver struct {
	mu           sync.Mutex
	hits, misses int
}

func (o *countingObserver) CacheHit(string)  { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *countingObserver) CacheMiss(string) { o.mu.Lock(); o.misses++; o.mu.Unlock() }

func TestMemoHitEqualsMiss(t *testing.T) {
	obs := &countingObserver{}
	m := NewMemo[[]float64]("pivot", NewLRUCache[[]float64](10, time.Minute), obs)
	calls := 0
	fn := func() ([]float64, error) {
		calls++
		return []float64{1, 2, 3}, nil
	}
	first, err := m.Do("k", fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Do("k", fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("hit %v differs from miss %v", second, first)
	}
	if calls != 1 || obs.hits != 1 || obs.misses != 1 {
		t.Fatalf("calls=%d hits=%d misses=%d", calls, obs.hits, obs.misses)
	}
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	m := NewMemo[int]("x", NewLRUCache[int](10, time.Minute), nil)
	boom := errors.New("boom")
	if _, err := m.Do("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err := m.Do("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("got %d, %v", v, err)
	}
}

func TestMemoSharesConcurrentCalls(t *testing.T) {
	m := NewMemo[int]("x", NewLRUCache[int](10, time.Minute), nil)
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Do("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 1, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls.Load() > 2 {
		t.Fatalf("expected shared computation, got %d calls", calls.Load())
	}
}

func TestFingerprint(t *testing.T) {
	schema := core.DefaultCatalog()[core.DatasetEmpregoMunicipios]
	a := core.Record{Year: 2024, Month: 1, Dims: map[string]string{"municipio": "Canoas"}, Values: map[string]float64{"saldo_movimentacao": 10}}
	b := core.Record{Year: 2024, Month: 2, Dims: map[string]string{"municipio": "Canoas"}, Values: map[string]float64{"saldo_movimentacao": 20}}

	t1 := core.Table{Schema: schema, Records: []core.Record{a, b}}
	t2 := core.Table{Schema: schema, Records: []core.Record{b, a}}
	if Fingerprint(t1) != Fingerprint(t2) {
		t.Fatalf("fingerprint must not depend on record order")
	}

	c := b
	c.Values = map[string]float64{"saldo_movimentacao": 21}
	t3 := core.Table{Schema: schema, Records: []core.Record{a, c}}
	if Fingerprint(t1) == Fingerprint(t3) {
		t.Fatalf("fingerprint must change with content")
	}
}

func TestKey(t *testing.T) {
	got := Key("ytd", []uint64{0xabc}, "municipio", 3)
	if got != "ytd:0000000000000abc:municipio:3" {
		t.Fatalf("key = %q", got)
	}
}
