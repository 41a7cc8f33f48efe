package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/uxcritique/internal/domain"
)

func TestGuidelineCache_ComputesOncePerKey(t *testing.T) {
	c := New(16, 0)
	key := Key{Update: "emphasize accessibility", Guidelines: "1. **A**: a"}

	var calls atomic.Int32
	compute := func(context.Context) (domain.GuidelineEdit, error) {
		calls.Add(1)
		return domain.GuidelineEdit{Guidelines: "1. **A**: a, accessibly", ChangeLog: "- emphasised"}, nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), key, compute)
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	second, hit, err := c.GetOrCompute(context.Background(), key, compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}

	if first != second {
		t.Errorf("cached value differs: %+v vs %+v", first, second)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 || s.Len != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestGuidelineCache_KeyFieldsDoNotCollide(t *testing.T) {
	c := New(16, 0)
	compute := func(v string) func(context.Context) (domain.GuidelineEdit, error) {
		return func(context.Context) (domain.GuidelineEdit, error) {
			return domain.GuidelineEdit{Guidelines: v}, nil
		}
	}

	// Joined with a colon these two pairs would be the same string.
	a, _, _ := c.GetOrCompute(context.Background(), Key{Update: "a:b", Guidelines: "c"}, compute("first"))
	b, hit, _ := c.GetOrCompute(context.Background(), Key{Update: "a", Guidelines: "b:c"}, compute("second"))

	if hit {
		t.Fatal("distinct keys must not share an entry")
	}
	if a.Guidelines != "first" || b.Guidelines != "second" {
		t.Errorf("got %q and %q", a.Guidelines, b.Guidelines)
	}
}

func TestGuidelineCache_ErrorsAreNotCached(t *testing.T) {
	c := New(16, 0)
	key := Key{Update: "u", Guidelines: "g"}

	_, _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (domain.GuidelineEdit, error) {
		return domain.GuidelineEdit{}, errors.New("model unavailable")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	_, hit, err := c.GetOrCompute(context.Background(), key, func(context.Context) (domain.GuidelineEdit, error) {
		return domain.GuidelineEdit{Guidelines: "ok"}, nil
	})
	if err != nil || hit {
		t.Fatalf("retry: hit=%v err=%v", hit, err)
	}
}

func TestGuidelineCache_EvictsBySize(t *testing.T) {
	c := New(1, 0)
	ctx := context.Background()
	edit := func(context.Context) (domain.GuidelineEdit, error) { return domain.GuidelineEdit{}, nil }

	c.GetOrCompute(ctx, Key{Update: "one"}, edit)
	c.GetOrCompute(ctx, Key{Update: "two"}, edit)

	if _, ok := c.Get(Key{Update: "one"}); ok {
		t.Error("oldest entry should be evicted")
	}
	if _, ok := c.Get(Key{Update: "two"}); !ok {
		t.Error("newest entry should be kept")
	}
}

func TestGuidelineCache_Expires(t *testing.T) {
	c := New(4, 20*time.Millisecond)
	key := Key{Update: "u"}
	c.GetOrCompute(context.Background(), key, func(context.Context) (domain.GuidelineEdit, error) {
		return domain.GuidelineEdit{Guidelines: "g"}, nil
	})

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Error("entry should have expired")
	}
}

func TestGuidelineCache_ConcurrentMissesShareCompute(t *testing.T) {
	c := New(4, 0)
	key := Key{Update: "u", Guidelines: "g"}

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (domain.GuidelineEdit, error) {
		calls.Add(1)
		<-release
		return domain.GuidelineEdit{Guidelines: "g2"}, nil
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), key, compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
}

func TestGuidelineCache_CancelledStarterDoesNotFailWaiters(t *testing.T) {
	c := New(4, 0)
	key := Key{Update: "u", Guidelines: "g"}

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	computeErr := make(chan error, 1)
	compute := func(ctx context.Context) (domain.GuidelineEdit, error) {
		calls.Add(1)
		close(started)
		<-release
		computeErr <- ctx.Err()
		return domain.GuidelineEdit{Guidelines: "g2"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	starterErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(ctx, key, compute)
		starterErr <- err
	}()
	<-started

	type result struct {
		edit domain.GuidelineEdit
		err  error
	}
	waiter := make(chan result, 1)
	go func() {
		edit, _, err := c.GetOrCompute(context.Background(), key, compute)
		waiter <- result{edit, err}
	}()

	cancel()
	if err := <-starterErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("starter err = %v, want context.Canceled", err)
	}
	close(release)

	got := <-waiter
	if got.err != nil || got.edit.Guidelines != "g2" {
		t.Fatalf("waiter = %+v", got)
	}
	if err := <-computeErr; err != nil {
		t.Errorf("compute ctx err = %v, want nil", err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
	if _, ok := c.Get(key); !ok {
		t.Error("result was not cached")
	}
}
