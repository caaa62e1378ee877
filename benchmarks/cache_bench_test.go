package benchmarks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"gitlab.com/timkado/api/daisi-feed-client/benchmarks/mocks"
	"gitlab.com/timkado/api/daisi-feed-client/internal/application"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

func warmCache(cache *application.ResourceCache, pages int) {
	for i := 0; i < pages; i++ {
		cache.Set(domain.PageKey(domain.ResourcePostFeed, "", i), domain.Page[domain.Post]{Cursor: i})
		cache.Set(domain.RecordKey(domain.ResourcePost, domain.IDString(int64(i))), domain.Post{ID: int64(i)})
	}
}

func BenchmarkResourceCache_ParallelGet(b *testing.B) {
	cache := application.NewResourceCache(mocks.NewMockLogger(), application.CacheTTLs{})
	warmCache(cache, 100)

	var misses atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, ok := cache.Get(domain.PageKey(domain.ResourcePostFeed, "", i%100)); !ok {
				misses.Add(1)
			}
			i++
		}
	})
	if misses.Load() > 0 {
		b.Errorf("expected warm cache, got %d misses", misses.Load())
	}
}

func BenchmarkResourceCache_InvalidateCollection(b *testing.B) {
	for _, pages := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("Pages_%d", pages), func(b *testing.B) {
			cache := application.NewResourceCache(mocks.NewMockLogger(), application.CacheTTLs{})
			collection := domain.Invalidation{
				Key:   domain.RecordKey(domain.ResourcePostFeed, ""),
				Scope: domain.ScopeCollection,
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				warmCache(cache, pages)
				b.StartTimer()
				if dropped := cache.Invalidate("benchmark", collection); dropped != pages {
					b.Fatalf("expected %d dropped pages, got %d", pages, dropped)
				}
			}
		})
	}
}

// BenchmarkLikeController_Toggle measures an optimistic toggle round trip
// against an in-memory backend.
func BenchmarkLikeController_Toggle(b *testing.B) {
	feed, _ := setupFeedBenchmark(b, 1, 0)
	likes := application.NewLikeController(mocks.NewMockLogger(), feed, nil)
	target := application.PostTarget(1)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := likes.Toggle(ctx, target); err != nil {
			b.Fatalf("toggle failed: %v", err)
		}
	}
}
