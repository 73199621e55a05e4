package benchmark

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config defines the benchmark parameters passed from CLI
type Config struct {
	Path      string // path to the tensor collection file
	Loop      int    // number of full passes over the collection
	Device    string // target device for materialized tensors, only "cpu" is supported
	Format    string // collection format: "auto", "safetensors" or "npz"
	LogFormat string // "json" or "console", default is "console"
}

// RunBenchmark orchestrates the full benchmark lifecycle: acquire the
// collection handle, time Loop full passes over every tensor, release
// the handle and print the per-pass average to standard output.
func RunBenchmark(cfg Config) error {
	setupLog(cfg)
	initialLog(cfg)

	coll, err := OpenCollection(CollectionConfig{
		Path:   cfg.Path,
		Format: FormatType(cfg.Format),
		Device: cfg.Device,
	})
	if err != nil {
		return fmt.Errorf("failed to open tensor collection: %w", err)
	}

	return runPasses(coll, cfg, os.Stdout)
}

// runPasses owns the collection handle: it is released exactly once on
// every exit path, including mid-loop fetch failures.
func runPasses(coll Collection, cfg Config, out io.Writer) (err error) {
	defer func() {
		if cerr := coll.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to release collection handle: %w", cerr)
		}
	}()

	if cfg.Loop < 1 {
		return fmt.Errorf("loop count must be at least 1, got %d", cfg.Loop)
	}

	var fetched, materialized uint64

	start := time.Now()
	for i := 0; i < cfg.Loop; i++ {
		keys := coll.Keys()

		// A fresh map each pass keeps peak memory bounded to one pass's
		// worth of tensors.
		results := make(map[string]Tensor, len(keys))
		for _, key := range keys {
			t, err := coll.Get(key)
			if err != nil {
				return fmt.Errorf("failed to fetch tensor %q: %w", key, err)
			}
			results[key] = t
			fetched++
			materialized += uint64(t.Size)
		}
	}
	elapsed := time.Since(start)
	avg := elapsed / time.Duration(cfg.Loop)

	log.Info().
		Int("passes", cfg.Loop).
		Uint64("tensors_fetched", fetched).
		Uint64("bytes_materialized", materialized).
		Dur("total_elapsed", elapsed).
		Dur("avg_per_pass", avg).
		Msg("Benchmark complete")

	fmt.Fprintf(out, "Benchmark completed in %s\n", formatDuration(avg))
	return nil
}

func initialLog(cfg Config) {
	format := cfg.Format
	if format == "" {
		format = string(FormatAuto)
	}
	device := cfg.Device
	if device == "" {
		device = "cpu"
	}

	log.Info().
		Str("path", cfg.Path).
		Int("loop", cfg.Loop).
		Str("device", device).
		Str("format", format).
		Msg("Starting benchmark")
}

func setupLog(cfg Config) {
	if strings.ToLower(cfg.LogFormat) == "json" {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}

// formatDuration renders d clock-style as H:MM:SS with a microsecond
// fraction, e.g. "0:00:01.500000". The fraction is omitted when zero.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	us := d / time.Microsecond

	if us == 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d:%02d.%06d", h, m, s, us)
}
