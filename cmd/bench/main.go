// Command bench runs a synthetic block-read workload against the cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/blockcache/cache"
	pmet "github.com/IvanBrykalov/blockcache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		capacity  = flag.Int64("cap", 64<<20, "cache capacity (bytes of charge)")
		shards    = flag.Int("shards", 0, "number of shards (0=16)")
		blockSize = flag.Int("block", 4096, "charge per block")
		files     = flag.Int("files", 64, "number of simulated table files")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")

		blocks = flag.Int("blocks", 1_000_000, "blocks per file keyspace")
		zipfS  = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV  = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed   = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "blockcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build cache ----
	c := cache.New[[]byte](cache.Options{
		Capacity: *capacity,
		Shards:   *shards,
		Metrics:  metrics,
	})

	// Every table file gets its own id so block offsets never collide.
	fileIDs := make([]uint64, *files)
	for i := range fileIDs {
		fileIDs[i] = c.NewID()
	}

	// ---- Snapshot flags for goroutines ----
	blockLen := *blockSize
	blocksMax := uint64(*blocks - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	var freed atomic.Uint64
	deleter := func([]byte, []byte) { freed.Add(1) }
	load := func(_ context.Context, key []byte) ([]byte, int64, cache.Deleter[[]byte], error) {
		b := make([]byte, blockLen)
		copy(b, key)
		return b, int64(blockLen), deleter, nil
	}

	// ---- Load generation ----
	var reads, hits, misses uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, blocksMax)
			key := make([]byte, 16)

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				binary.BigEndian.PutUint64(key[:8], fileIDs[localR.Intn(len(fileIDs))])
				binary.BigEndian.PutUint64(key[8:], localZipf.Uint64()*uint64(blockLen))

				atomic.AddUint64(&reads, 1)
				if h := c.Lookup(key); h != nil {
					atomic.AddUint64(&hits, 1)
					c.Release(h)
					continue
				}
				atomic.AddUint64(&misses, 1)
				h, err := c.GetOrLoad(ctx, key, load)
				if err != nil {
					return // ctx done
				}
				c.Release(h)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	readsN := atomic.LoadUint64(&reads)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("cap=%d shards=%d workers=%d files=%d blocks=%d dur=%v seed=%d\n",
		*capacity, *shards, workersN, *files, *blocks, elapsed, seedBase)
	fmt.Printf("reads=%d (%.0f ops/s)\n", readsN, float64(readsN)/elapsed.Seconds())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("Len()=%d TotalCharge()=%d freed=%d\n", c.Len(), c.TotalCharge(), freed.Load())

	if err := c.Close(); err != nil {
		log.Printf("close: %v", err)
	}
}
