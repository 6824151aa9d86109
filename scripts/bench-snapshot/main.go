// bench-snapshot measures heap memory and snapshot size while a seed tracker
// is fed synthetic colinear hits in batches and saved to disk between them.
//
// Usage:
//
//	go run ./scripts/bench-snapshot --hits 2000000 --batch 250000 \
//	  --snapshot-dir /tmp/rtalign-snap --profile-dir docs/profiles/snapshot
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

const (
	seedLength = 12
	maxJitter  = 3
	mib        = 1 << 20
)

type heapSample struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	chains    int
	fileBytes int64
	elapsed   time.Duration
}

func main() {
	hits := flag.Int("hits", 1_000_000, "number of synthetic seed hits")
	batch := flag.Int("batch", 100_000, "hits per batch between two snapshots")
	runLength := flag.Int("run", 40, "colinear hits per synthetic chain")
	snapshotDir := flag.String("snapshot-dir", "", "directory for tracker snapshots (default: temp dir)")
	profileDir := flag.String("profile-dir", "", "directory to write heap profiles (optional)")
	seed := flag.Uint64("seed", 1, "random seed")

	flag.Parse()

	if *batch <= 0 || *hits <= 0 || *runLength <= 0 {
		log.Fatal("--hits, --batch and --run must be positive")
	}

	dir := *snapshotDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "rtalign-snapshot-")
		if err != nil {
			log.Fatalf("create temp dir: %v", err)
		}
		defer os.RemoveAll(tmp)

		dir = tmp
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	all := synthesize(*hits, *runLength, rand.New(rand.NewPCG(*seed, *seed)))
	log.Printf("generated %d hits", len(all))

	tracker, err := seedtracker.NewTracker(seedtracker.DefaultPolicy())
	if err != nil {
		log.Fatalf("new tracker: %v", err)
	}

	var samples []heapSample

	take := func(label string, elapsed time.Duration) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		s := heapSample{label: label, heapInUse: m.HeapInuse, heapSys: m.HeapSys, elapsed: elapsed}

		if tracker != nil {
			s.chains = tracker.Len()
		}

		if info, statErr := os.Stat(seedtracker.SnapshotPath(dir)); statErr == nil {
			s.fileBytes = info.Size()
		}

		samples = append(samples, s)
		log.Printf("  [heap] %-32s inuse=%7.1f MiB  chains=%d", label, float64(m.HeapInuse)/mib, s.chains)
	}

	writeHeapProfile := func(name string) {
		if *profileDir == "" {
			return
		}

		f, ferr := os.Create(filepath.Join(*profileDir, name))
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", name, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", name, perr)
		}
	}

	take("before_feeding", 0)

	for start, i := 0, 1; start < len(all); start, i = start+*batch, i+1 {
		end := min(start+*batch, len(all))

		began := time.Now()
		tracker.AddSeeds(all[start:end])
		take(fmt.Sprintf("batch_%d_fed", i), time.Since(began))

		began = time.Now()

		if saveErr := tracker.SaveSnapshot(dir); saveErr != nil {
			log.Fatalf("save snapshot: %v", saveErr)
		}

		tracker = nil

		take(fmt.Sprintf("batch_%d_saved", i), time.Since(began))
		writeHeapProfile(fmt.Sprintf("heap_batch_%d_saved.prof", i))

		began = time.Now()

		tracker, err = seedtracker.LoadSnapshot(dir)
		if err != nil {
			log.Fatalf("load snapshot: %v", err)
		}

		take(fmt.Sprintf("batch_%d_loaded", i), time.Since(began))
	}

	st := tracker.Stats()

	fmt.Println()
	fmt.Println("=== Snapshot Timeline ===")
	fmt.Printf("%-32s %10s %10s %10s %12s %12s\n", "Phase", "InUse(MiB)", "Sys(MiB)", "Chains", "File(KiB)", "Elapsed")
	fmt.Println(strings.Repeat("-", 92))

	for _, s := range samples {
		fmt.Printf("%-32s %10.1f %10.1f %10d %12.1f %12s\n",
			s.label, float64(s.heapInUse)/mib, float64(s.heapSys)/mib, s.chains,
			float64(s.fileBytes)/1024, s.elapsed.Round(time.Microsecond))
	}

	fmt.Println()
	fmt.Printf("seeds=%d created=%d merged=%d joined=%d chains=%d\n",
		st.Seeds, st.Created, st.Merged, st.Joined, tracker.Len())
}

// synthesize builds runs of colinear hits on random diagonals and shuffles
// them so every batch mixes old and new chains.
func synthesize(n, runLength int, rng *rand.Rand) []seedtracker.Hit {
	hits := make([]seedtracker.Hit, 0, n)

	for len(hits) < n {
		ref := rng.IntN(1 << 30)
		evt := rng.IntN(1 << 20)

		strand := seedtracker.Forward
		if rng.IntN(2) == 1 {
			strand = seedtracker.Reverse
		}

		for j := 0; j < runLength && len(hits) < n; j++ {
			step := 1 + rng.IntN(maxJitter)

			hits = append(hits, seedtracker.Hit{
				Strand:   strand,
				RefStart: ref,
				RefEnd:   ref + seedLength,
				EvtStart: evt,
				EvtEnd:   evt + 1,
				Length:   seedLength,
			})

			ref += seedLength + step
			evt += 1 + step
		}
	}

	rng.Shuffle(len(hits), func(i, j int) { hits[i], hits[j] = hits[j], hits[i] })

	return hits
}
