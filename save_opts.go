package strm

import (
	"context"
	"log/slog"

	"github.com/meigma/strm/internal/chunk"
	"github.com/meigma/strm/internal/codec"
)

// Compression levels.
const (
	// CompressionLevelAuto resolves to DefaultCompressionLevel.
	CompressionLevelAuto = -1

	// DefaultCompressionLevel is the codec search effort used by
	// CompressionLevelAuto.
	DefaultCompressionLevel = codec.DefaultEffort
)

// DefaultChunkSize is the chunk size used for parallel compression.
const DefaultChunkSize = 1 << 20

// compressFunc encodes a raw payload for storage.
type compressFunc func(ctx context.Context, raw []byte, effort, chunkSize, workers int) ([]byte, error)

func chunkCompress(ctx context.Context, raw []byte, effort, chunkSize, workers int) ([]byte, error) {
	return chunk.Compress(ctx, raw, effort, chunkSize, chunk.WithWorkers(workers))
}

// SaveOption configures Write and Save.
type SaveOption func(*saveConfig)

type saveConfig struct {
	skipAlreadyCompressed bool
	preserveXML           bool
	compressionLevel      int
	chunkSize             int
	workers               int
	transcoder            XMLTranscoder
	progress              ProgressFunc
	logger                *slog.Logger
	compress              compressFunc
}

func newSaveConfig(opts []SaveOption) saveConfig {
	cfg := saveConfig{
		chunkSize: DefaultChunkSize,
		compress:  chunkCompress,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// effort returns the codec effort, or 0 when compression is disabled.
func (c *saveConfig) effort() int {
	level := c.compressionLevel
	if level == CompressionLevelAuto {
		level = DefaultCompressionLevel
	}
	return max(level, 0)
}

// SaveWithSkipAlreadyCompressed copies compressed sources verbatim instead of
// decoding and re-encoding them. By default, every payload is re-encoded.
func SaveWithSkipAlreadyCompressed(skip bool) SaveOption {
	return func(c *saveConfig) {
		c.skipAlreadyCompressed = skip
	}
}

// SaveWithPreserveXML stores XML payloads as-is even when a transcoder is set.
func SaveWithPreserveXML(preserve bool) SaveOption {
	return func(c *saveConfig) {
		c.preserveXML = preserve
	}
}

// SaveWithCompressionLevel sets the codec search effort.
//
// CompressionLevelAuto uses DefaultCompressionLevel. Zero and other negative
// values store every payload raw, which is also the default. Larger values
// search further back for matches and compress slower.
func SaveWithCompressionLevel(level int) SaveOption {
	return func(c *saveConfig) {
		c.compressionLevel = level
	}
}

// SaveWithChunkSize sets the size of independently compressed chunks
// (default: 1 MiB). Values <= 0 compress each payload as a single chunk.
func SaveWithChunkSize(n int) SaveOption {
	return func(c *saveConfig) {
		c.chunkSize = n
	}
}

// SaveWithWorkers sets the number of chunk compression workers.
// Values < 1 use GOMAXPROCS.
func SaveWithWorkers(n int) SaveOption {
	return func(c *saveConfig) {
		c.workers = n
	}
}

// SaveWithXMLTranscoder sets the transcoder applied to XML payloads.
func SaveWithXMLTranscoder(t XMLTranscoder) SaveOption {
	return func(c *saveConfig) {
		c.transcoder = t
	}
}

// SaveWithProgress sets a callback for save progress.
func SaveWithProgress(fn ProgressFunc) SaveOption {
	return func(c *saveConfig) {
		c.progress = fn
	}
}

// SaveWithLogger sets the logger for the save. It defaults to the archive's
// logger.
func SaveWithLogger(logger *slog.Logger) SaveOption {
	return func(c *saveConfig) {
		c.logger = logger
	}
}
