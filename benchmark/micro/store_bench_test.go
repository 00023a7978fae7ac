package micro

import (
	"context"
	"fmt"
	"testing"

	"github.com/discochess/faultkv"
	"github.com/discochess/faultkv/internal/codec"
	"github.com/discochess/faultkv/internal/codec/gzipcodec"
	"github.com/discochess/faultkv/internal/codec/noopcodec"
	"github.com/discochess/faultkv/internal/codec/zstdcodec"
	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/store/lrustore"
)

func codecs(b *testing.B) []codec.Codec {
	b.Helper()
	z, err := zstdcodec.New()
	if err != nil {
		b.Fatalf("creating zstd codec: %v", err)
	}
	return []codec.Codec{noopcodec.New(), gzipcodec.New(), z}
}

func value(n int) []byte {
	v := make([]byte, n)
	for i := range v {
		v[i] = byte('a' + i%26)
	}
	return v
}

// BenchmarkStore_Set measures the write path without faults or latency.
func BenchmarkStore_Set(b *testing.B) {
	ctx := context.Background()
	v := value(1000)

	for _, c := range codecs(b) {
		b.Run(c.Name(), func(b *testing.B) {
			st, err := faultkv.New(faultkv.WithCodec(c))
			if err != nil {
				b.Fatalf("creating store: %v", err)
			}
			defer st.Close()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := st.Set(ctx, fmt.Sprintf("key_%d", i%1024), v); err != nil {
					b.Fatalf("set: %v", err)
				}
			}
		})
	}
}

// BenchmarkStore_Get measures the read path on a warm store.
func BenchmarkStore_Get(b *testing.B) {
	ctx := context.Background()
	v := value(1000)

	for _, c := range codecs(b) {
		b.Run(c.Name(), func(b *testing.B) {
			st, err := faultkv.New(faultkv.WithCodec(c))
			if err != nil {
				b.Fatalf("creating store: %v", err)
			}
			defer st.Close()

			keys := make([]string, 1024)
			for i := range keys {
				keys[i] = fmt.Sprintf("key_%d", i)
				if err := st.Set(ctx, keys[i], v); err != nil {
					b.Fatalf("set: %v", err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := st.Get(ctx, keys[i%len(keys)]); err != nil {
					b.Fatalf("get: %v", err)
				}
			}
		})
	}
}

// BenchmarkStore_GetParallel measures shard lock contention.
func BenchmarkStore_GetParallel(b *testing.B) {
	for _, shards := range []int{1, 3, 16} {
		b.Run(fmt.Sprintf("shards=%d", shards), func(b *testing.B) {
			ctx := context.Background()
			st, err := faultkv.New(faultkv.WithShardCount(shards))
			if err != nil {
				b.Fatalf("creating store: %v", err)
			}
			defer st.Close()

			for i := 0; i < 1024; i++ {
				if err := st.Set(ctx, fmt.Sprintf("key_%d", i), value(64)); err != nil {
					b.Fatalf("set: %v", err)
				}
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					if _, err := st.Get(ctx, fmt.Sprintf("key_%d", i%1024)); err != nil {
						b.Errorf("get: %v", err)
						return
					}
					i++
				}
			})
		})
	}
}

// BenchmarkStore_LRUEviction measures writes into a bounded store that
// evicts on every insert once full.
func BenchmarkStore_LRUEviction(b *testing.B) {
	ctx := context.Background()
	st, err := faultkv.New(faultkv.WithStoreFactory(lrustore.Factory(128, stats.NewNoop())))
	if err != nil {
		b.Fatalf("creating store: %v", err)
	}
	defer st.Close()

	v := value(64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := st.Set(ctx, fmt.Sprintf("key_%d", i), v); err != nil {
			b.Fatalf("set: %v", err)
		}
	}
}
