// Command gpukv-demo exercises a gpukv Store against either of the two
// reference backends, running a fixed PUT/GET/DELETE/async-GET script
// from one goroutine per block, then printing a metrics snapshot.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/segevido/gpukv"
	"github.com/segevido/gpukv/backend"
	"github.com/segevido/gpukv/internal/constants"
	"github.com/segevido/gpukv/internal/interfaces"
	"github.com/segevido/gpukv/internal/logging"
)

func main() {
	var (
		backendName = flag.String("backend", "mem", "storage backend: mem|pebble")
		numBlocks   = flag.Int("blocks", 4, "number of simulated accelerator thread blocks")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	var be interfaces.Backend
	switch *backendName {
	case "mem":
		be = backend.NewMemory()
	case "pebble":
		dir := os.Getenv(constants.EnvDBIdentify)
		if dir == "" {
			dir = "./gpukv-demo-data"
		}
		be = backend.NewPebble(dir)
	default:
		log.Fatalf("unknown backend %q, want mem or pebble", *backendName)
	}

	cfg := gpukv.DefaultConfig(be)
	cfg.NumBlocks = *numBlocks
	if v := os.Getenv(constants.EnvQueueSize); v != "" {
		var qs uint32
		if _, err := fmt.Sscanf(v, "%d", &qs); err == nil && qs > 0 {
			cfg.QueueSize = qs
		}
	}
	cfg.Logger = logger

	store, err := gpukv.NewStore(cfg)
	if err != nil {
		log.Fatalf("NewStore failed: %v", err)
	}

	var wg sync.WaitGroup
	for block := 0; block < store.NumBlocks(); block++ {
		wg.Add(1)
		go func(block int) {
			defer wg.Done()
			runBlockScript(store, block)
		}(block)
	}
	wg.Wait()

	if err := store.Close(); err != nil {
		log.Fatalf("Close failed: %v", err)
	}

	snap := store.Stats()
	fmt.Printf("puts=%d gets=%d deletes=%d async_initiate=%d async_finalize=%d\n",
		snap.PutOps, snap.GetOps, snap.DeleteOps, snap.AsyncInitiateOps, snap.AsyncFinalizeOps)
	fmt.Printf("success=%d non_exist=%d fail=%d avg_latency_ns=%d\n",
		snap.SuccessCount, snap.NonExistCount, snap.FailCount, snap.AvgLatencyNs)
}

// runBlockScript drives a fixed PUT/GET/DELETE/async-GET sequence against
// one block, as a simulated accelerator thread block would.
func runBlockScript(store *gpukv.Store, block int) {
	key := []byte(fmt.Sprintf("demo-key-%02d", block))
	val := make([]byte, 16)
	copy(val, fmt.Sprintf("value-for-%02d", block))

	if _, err := store.KVPut(block, key, val); err != nil {
		log.Printf("block %d: PUT error: %v", block, err)
		return
	}

	dst := make([]byte, 16)
	if _, _, err := store.KVGet(block, key, dst); err != nil {
		log.Printf("block %d: GET error: %v", block, err)
		return
	}

	ticket, err := store.KVAsyncGetInitiate(block, [][]byte{key}, 16)
	if err != nil {
		log.Printf("block %d: ASYNC_GET_INITIATE error: %v", block, err)
		return
	}
	asyncDst := make([]byte, 16)
	if _, err := store.KVAsyncGetFinalize(block, ticket, [][]byte{asyncDst}); err != nil {
		log.Printf("block %d: ASYNC_GET_FINALIZE error: %v", block, err)
		return
	}

	if _, err := store.KVDelete(block, key); err != nil {
		log.Printf("block %d: DELETE error: %v", block, err)
		return
	}
}
