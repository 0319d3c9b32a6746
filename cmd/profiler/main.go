package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/meigma/strm"
	"github.com/meigma/strm/internal/chunk"
	"github.com/meigma/strm/internal/codec"
)

type config struct {
	mode       string
	entries    int
	entrySize  int
	pattern    string
	effort     int
	chunkSize  int
	workers    int
	duration   time.Duration
	iterations int
	pprofAddr  string
	cpuProfile string
	memProfile string
	traceFile  string
	tempDir    string
	keepTemp   bool
	randomSeed int64
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkBytes []byte
	sinkEntry *strm.Entry
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	payloads := makePayloads(cfg.entries, cfg.entrySize, cfg.pattern, cfg.randomSeed)
	archivePath, err := buildArchive(dir, payloads, cfg)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, payloads, archivePath)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d bytes=%d ratio=%.3f elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.bytes,
		stats.ratio(),
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops      int
	bytes    int64
	outBytes int64
	elapsed  time.Duration
}

func (s profileStats) ratio() float64 {
	if s.bytes == 0 {
		return 0
	}
	return float64(s.outBytes) / float64(s.bytes)
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, payloads [][]byte, archivePath string) (profileStats, error) {
	ctx := context.Background()
	start := time.Now()
	ops := 0
	var byteCount, outCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "encode":
		for shouldContinue() {
			p := payloads[ops%len(payloads)]
			enc, err := codec.Encode(ctx, p, cfg.effort)
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = enc
			byteCount += int64(len(p))
			outCount += int64(len(enc))
			ops++
		}

	case "chunk":
		for shouldContinue() {
			p := payloads[ops%len(payloads)]
			enc, err := chunk.Compress(ctx, p, cfg.effort, cfg.chunkSize, chunk.WithWorkers(cfg.workers))
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = enc
			byteCount += int64(len(p))
			outCount += int64(len(enc))
			ops++
		}

	case "decode":
		streams := make([][]byte, len(payloads))
		for i, p := range payloads {
			enc, err := codec.Encode(ctx, p, cfg.effort)
			if err != nil {
				return profileStats{}, err
			}
			streams[i] = enc
		}
		start = time.Now()
		for shouldContinue() {
			i := ops % len(payloads)
			raw, err := codec.Decode(streams[i], len(streams[i]), len(payloads[i]))
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = raw
			byteCount += int64(len(raw))
			outCount += int64(len(streams[i]))
			ops++
		}

	case "save":
		a, err := strm.Open(archivePath)
		if err != nil {
			return profileStats{}, err
		}
		defer a.Close()
		for shouldContinue() {
			var buf bytes.Buffer
			stats, err := a.Write(ctx, &buf,
				strm.SaveWithCompressionLevel(cfg.effort),
				strm.SaveWithChunkSize(cfg.chunkSize),
				strm.SaveWithWorkers(cfg.workers),
			)
			if err != nil {
				return profileStats{}, err
			}
			byteCount += stats.RawBytes
			outCount += stats.BytesWritten
			ops++
		}

	case "open":
		for shouldContinue() {
			a, err := strm.Open(archivePath)
			if err != nil {
				return profileStats{}, err
			}
			for _, e := range a.Entries() {
				raw, err := e.Source().ReadRaw()
				if err != nil {
					a.Close()
					return profileStats{}, err
				}
				sinkBytes = raw
				byteCount += int64(len(raw))
			}
			if err := a.Close(); err != nil {
				return profileStats{}, err
			}
			ops++
		}
		outCount = byteCount

	case "lookup":
		a, err := strm.Open(archivePath)
		if err != nil {
			return profileStats{}, err
		}
		defer a.Close()
		rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
		flags := []strm.SkinFlag{strm.LookupDefault, strm.LookupAlt, strm.SkinDefault}
		for shouldContinue() {
			i := rng.Intn(len(payloads))
			e, err := a.GetEntry(entryPath(i), flags[i%len(flags)])
			if err != nil {
				return profileStats{}, err
			}
			sinkEntry = e
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode %q", cfg.mode)
	}

	return profileStats{ops: ops, bytes: byteCount, outBytes: outCount, elapsed: time.Since(start)}, nil
}

func parseFlags() config {
	var cfg config

	flag.StringVar(&cfg.mode, "mode", "encode", "mode: encode, chunk, decode, save, open, lookup")
	flag.IntVar(&cfg.entries, "entries", 64, "number of archive entries")
	flag.IntVar(&cfg.entrySize, "entry-size", 256<<10, "entry payload size in bytes")
	flag.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flag.IntVar(&cfg.effort, "effort", codec.DefaultEffort, "codec search effort (save: compression level)")
	flag.IntVar(&cfg.chunkSize, "chunk-size", strm.DefaultChunkSize, "chunk size for chunk and save modes")
	flag.IntVar(&cfg.workers, "workers", 0, "chunk workers: 0 uses GOMAXPROCS")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()

	if cfg.entries <= 0 {
		log.Fatal(errors.New("entries must be positive"))
	}
	return cfg
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "strm-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func entryPath(i int) string {
	return fmt.Sprintf("chara/c%03d/body%05d.mdl", i%97, i)
}

// makePayloads generates entry payloads. Compressible payloads repeat short
// phrases with occasional noise so the codec finds matches at varied
// distances.
func makePayloads(count, size int, pattern string, seed int64) [][]byte {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional use for reproducible benchmarks
	phrases := [][]byte{
		[]byte("vertex buffer "),
		[]byte("bone weight "),
		[]byte("texture coord "),
		[]byte("\x00\x00\x80\x3f"),
	}
	payloads := make([][]byte, count)
	for i := range payloads {
		p := make([]byte, 0, size)
		switch pattern {
		case "random":
			p = p[:size]
			_, _ = rng.Read(p)
		default:
			for len(p) < size {
				if rng.Intn(8) == 0 {
					p = append(p, byte(rng.Intn(256)))
					continue
				}
				p = append(p, phrases[rng.Intn(len(phrases))]...)
			}
			p = p[:size]
		}
		payloads[i] = p
	}
	return payloads
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func buildArchive(dir string, payloads [][]byte, cfg config) (string, error) {
	a := strm.New()
	for i, p := range payloads {
		skin := strm.SkinDefault
		if i%3 == 1 {
			skin = strm.SkinAltA
		}
		if _, err := a.PutEntry(-1, entryPath(i), strm.RawBytes{Data: p}, skin); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, "profile.strm")
	_, err := a.Save(context.Background(), path,
		strm.SaveWithCompressionLevel(cfg.effort),
		strm.SaveWithChunkSize(cfg.chunkSize),
		strm.SaveWithWorkers(cfg.workers),
	)
	return path, err
}
