package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canopystats/server/internal/cache"
	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/grid"
)

type fakeFetcher struct {
	calls int32
	err   error
	delay time.Duration
}

func (f *fakeFetcher) FetchTile(ctx context.Context, desc grid.TileDescriptor) (*raster.Tile, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return raster.NewTile(1, 2, 2), nil
}

func testCache(t *testing.T) *cache.Manager {
	t.Helper()
	m, err := cache.NewManager(cache.Config{TileCacheEntries: 8})
	if err != nil {
		t.Fatalf("cache.NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestLoadCachesTile(t *testing.T) {
	f := &fakeFetcher{}
	s := New(f, testCache(t), time.Second)
	g := grid.DefaultCONUS()

	desc := g.Descriptor(1, 1)
	first := s.Load(context.Background(), desc)
	if first == nil {
		t.Fatal("expected tile")
	}
	second := s.Load(context.Background(), desc)
	if second != first {
		t.Error("expected cached tile identity")
	}
	if f.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls)
	}
}

func TestLoadFailureReturnsNil(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	s := New(f, testCache(t), time.Second)
	if tile := s.Load(context.Background(), grid.DefaultCONUS().Descriptor(0, 0)); tile != nil {
		t.Error("expected nil tile on fetch failure")
	}
}

func TestLoadTimeout(t *testing.T) {
	f := &fakeFetcher{delay: time.Second}
	s := New(f, testCache(t), 10*time.Millisecond)
	if tile := s.Load(context.Background(), grid.DefaultCONUS().Descriptor(0, 0)); tile != nil {
		t.Error("expected nil tile on timeout")
	}
}

func TestConcurrentLoadsDeduplicated(t *testing.T) {
	f := &fakeFetcher{delay: 50 * time.Millisecond}
	s := New(f, testCache(t), time.Second)
	desc := grid.DefaultCONUS().Descriptor(2, 3)

	var wg sync.WaitGroup
	tiles := make([]*raster.Tile, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tiles[i] = s.Load(context.Background(), desc)
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&f.calls); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	for i, tile := range tiles {
		if tile == nil {
			t.Fatalf("goroutine %d got nil tile", i)
		}
		if tile != tiles[0] {
			t.Errorf("goroutine %d got a different tile instance", i)
		}
	}
}

func TestLoadWithoutCache(t *testing.T) {
	f := &fakeFetcher{}
	s := New(f, nil, time.Second)
	desc := grid.DefaultCONUS().Descriptor(0, 0)
	if s.Load(context.Background(), desc) == nil {
		t.Fatal("expected tile")
	}
	if s.Load(context.Background(), desc) == nil {
		t.Fatal("expected tile")
	}
	if f.calls != 2 {
		t.Errorf("fetcher called %d times, want 2 without cache", f.calls)
	}
}
