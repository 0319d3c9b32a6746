package strm

import (
	"log/slog"

	"github.com/meigma/strm/internal/crc"
)

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for archive operations.
// By default, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithEagerThreshold sets the payload size below which Open copies payloads
// into memory (default: 64 KiB). Larger payloads are read from the file on
// demand. Values < 0 load everything eagerly.
func WithEagerThreshold(n int64) Option {
	return func(a *Archive) {
		if n < 0 {
			n = 1 << 62
		}
		a.eagerThreshold = n
	}
}

// WithHashParams overrides the CRC seed and polynomial used for entry hashes.
// poly is in the reversed form accepted by hash/crc32.
func WithHashParams(seed, poly uint32) Option {
	return func(a *Archive) {
		a.hashParams = crc.Params{Seed: seed, Poly: poly}
	}
}

// WithProgress sets a callback for read progress.
func WithProgress(fn ProgressFunc) Option {
	return func(a *Archive) {
		a.progress = fn
	}
}
