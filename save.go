package strm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/strm/internal/crc"
	"github.com/meigma/strm/internal/ioutil"
	"github.com/meigma/strm/internal/sizing"
)

// Write encodes the archive to w.
//
// Each entry runs through the save pipeline in order. With
// SaveWithSkipAlreadyCompressed, compressed sources are copied verbatim, and
// entries still holding the payload they were read with also keep their
// header sizes and hash. Otherwise the raw payload is optionally transcoded
// from XML and compressed, and the compressed form is kept only if it is
// strictly smaller. New hashes are computed over the bytes actually stored.
//
// A codec failure that is not a context error stores the entry raw and is
// counted in SaveStats.CompressionFallbacks. Read and decode failures abort.
func (a *Archive) Write(ctx context.Context, w io.Writer, opts ...SaveOption) (SaveStats, error) {
	cfg := newSaveConfig(opts)
	if cfg.logger == nil {
		cfg.logger = a.log()
	}

	bw := bufio.NewWriterSize(w, readBufferSize)
	cw := &ioutil.CountingWriter{W: bw}
	var stats SaveStats

	if _, err := io.WriteString(cw, Magic); err != nil {
		return stats, err
	}

	var hdr []byte
	for i, e := range a.entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		var err error
		hdr, err = a.writeEntry(ctx, cw, hdr[:0], e, &cfg, &stats)
		if err != nil {
			return stats, fmt.Errorf("entry %d %s: %w", i, e.Header.InnerPath, err)
		}
		stats.Entries++
		emit(cfg.progress, ProgressEvent{
			Stage:        StageWriting,
			Path:         e.Header.InnerPath,
			EntriesDone:  i + 1,
			EntriesTotal: len(a.entries),
			BytesDone:    cw.N,
		})
	}

	if err := bw.Flush(); err != nil {
		return stats, err
	}
	stats.BytesWritten = cw.N
	cfg.logger.Info("wrote archive",
		slog.Int("entries", stats.Entries),
		slog.Int("compressed", stats.Compressed),
		slog.Int("fallbacks", stats.CompressionFallbacks),
		slog.Int64("bytes", stats.BytesWritten))
	return stats, nil
}

// writeEntry runs the save pipeline for e and writes its header and payload.
// hdr is scratch space for the encoded header and is returned for reuse.
func (a *Archive) writeEntry(ctx context.Context, w io.Writer, hdr []byte, e *Entry, cfg *saveConfig, stats *SaveStats) ([]byte, error) {
	src := e.source
	h := Header{
		Unknown:   e.Header.Unknown,
		SkinFlag:  e.Header.SkinFlag,
		InnerPath: e.Header.InnerPath,
	}

	var stored []byte
	var keepHash bool
	var err error
	if cfg.skipAlreadyCompressed && src.IsCompressed() {
		var buf bytes.Buffer
		buf.Grow(int(min(src.StoredLen(), int64(preallocLimit))))
		if _, err := src.WriteStoredTo(&buf); err != nil {
			return hdr, fmt.Errorf("copy stored bytes: %w", err)
		}
		stored = buf.Bytes()
		if e.parsed {
			// Unchanged entries keep the header they were read with,
			// including a hash made with other CRC parameters.
			h.CompressedSize = e.Header.CompressedSize
			h.DecompressedSize = e.Header.DecompressedSize
			h.Hash = e.Header.Hash
			keepHash = true
		} else {
			if h.CompressedSize, err = sizing.ToUint32(len(stored), ErrSizeOverflow); err != nil {
				return hdr, err
			}
			if h.DecompressedSize, err = rawSize(src.RawLen()); err != nil {
				return hdr, err
			}
		}
		stats.PassedThrough++
		stats.Compressed++
	} else {
		var compressed bool
		stored, h.DecompressedSize, compressed, err = encodePayload(ctx, e, cfg, stats)
		if err != nil {
			return hdr, err
		}
		if compressed {
			h.CompressedSize = uint32(len(stored)) //nolint:gosec // smaller than the u32 raw size
			stats.Compressed++
		}
	}
	stats.RawBytes += int64(h.DecompressedSize)
	if !keepHash {
		h.Hash = crc.Checksum(a.hashParams, stored)
	}

	hdr, err = AppendHeader(hdr, &h)
	if err != nil {
		return hdr, err
	}
	if _, err := w.Write(hdr); err != nil {
		return hdr, err
	}
	if _, err := w.Write(stored); err != nil {
		return hdr, err
	}

	cfg.logger.Debug("wrote entry",
		slog.String("path", h.InnerPath),
		slog.String("flag", h.SkinFlag.String()),
		slog.Int64("stored", int64(len(stored))),
		slog.Int64("raw", int64(h.DecompressedSize)))
	return hdr, nil
}

// encodePayload materializes the raw payload of e, applies the XML transcoder
// and compresses it. It returns the bytes to store, the raw size, and whether
// the stored bytes are a codec stream.
func encodePayload(ctx context.Context, e *Entry, cfg *saveConfig, stats *SaveStats) ([]byte, uint32, bool, error) {
	raw, err := e.source.ReadRaw()
	if err != nil {
		return nil, 0, false, fmt.Errorf("read payload: %w", err)
	}

	if !cfg.preserveXML && cfg.transcoder != nil && isXMLDocument(raw) {
		raw, err = cfg.transcoder.Transcode(raw)
		if err != nil {
			return nil, 0, false, fmt.Errorf("transcode xml: %w", err)
		}
		stats.Transcoded++
	}

	rawLen, err := sizing.ToUint32(len(raw), ErrSizeOverflow)
	if err != nil {
		return nil, 0, false, err
	}

	effort := cfg.effort()
	if effort == 0 || len(raw) == 0 {
		return raw, rawLen, false, nil
	}

	emit(cfg.progress, ProgressEvent{Stage: StageCompressing, Path: e.Header.InnerPath})
	enc, err := cfg.compress(ctx, raw, effort, cfg.chunkSize, cfg.workers)
	if err != nil {
		if isContextErr(ctx, err) {
			return nil, 0, false, err
		}
		cfg.logger.Warn("compression failed, storing raw",
			slog.String("path", e.Header.InnerPath),
			slog.Any("error", err))
		stats.CompressionFallbacks++
		return raw, rawLen, false, nil
	}
	if len(enc) >= len(raw) {
		return raw, rawLen, false, nil
	}
	return enc, rawLen, true, nil
}

func isContextErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func rawSize(n int64) (uint32, error) {
	if n < 0 {
		return 0, ErrSizeOverflow
	}
	v, err := sizing.ToInt(uint64(n), ErrSizeOverflow)
	if err != nil {
		return 0, err
	}
	return sizing.ToUint32(v, ErrSizeOverflow)
}

// Save writes the archive to path.
//
// The archive is written to a temporary file in the same directory and
// renamed over path only after every entry succeeded. On failure, including
// cancellation, path is left untouched. Parent directories are created as
// needed. Sources backed by an existing file at path stay readable until
// Close.
func (a *Archive) Save(ctx context.Context, path string, opts ...SaveOption) (SaveStats, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return SaveStats{}, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".strm-*")
	if err != nil {
		return SaveStats{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	stats, err := a.Write(ctx, tmp, opts...)
	if err != nil {
		return stats, err
	}
	if err := tmp.Sync(); err != nil {
		return stats, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return stats, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return stats, fmt.Errorf("rename to destination: %w", err)
	}
	success = true
	return stats, nil
}
