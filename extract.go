package strm

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
)

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite    bool
	metadataName string
	progress     ProgressFunc
}

// ExtractWithOverwrite allows replacing existing files.
// By default, an existing file fails the extraction.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithMetadataName sets the sidecar file name (default: metadata.txt).
// An empty name skips writing the sidecar.
func ExtractWithMetadataName(name string) ExtractOption {
	return func(c *extractConfig) {
		c.metadataName = name
	}
}

// ExtractWithProgress sets a callback for extraction progress.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}

// Extract writes every entry's raw payload under dir at
// LooseFileName(path, flag), then writes the metadata sidecar so BuildDir can
// recreate the archive. Paths cannot escape dir.
//
// Entries whose loose file name matches an earlier entry's, ignoring case,
// are skipped and counted in ExtractStats.Skipped.
func (a *Archive) Extract(ctx context.Context, dir string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{metadataName: DefaultMetadataName}
	for _, opt := range opts {
		opt(&cfg)
	}

	var stats ExtractStats
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return stats, fmt.Errorf("create directory: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return stats, err
	}
	defer root.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if cfg.overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	seen := make(map[string]struct{}, len(a.entries))
	records := make([]MetadataRecord, 0, len(a.entries))
	for i, e := range a.entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		name := LooseFileName(e.Header.InnerPath, e.Header.SkinFlag)
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			a.log().Warn("skipping entry with duplicate loose file name",
				slog.String("path", e.Header.InnerPath),
				slog.String("flag", e.Header.SkinFlag.String()),
				slog.String("file", name))
			stats.Skipped++
			continue
		}
		seen[key] = struct{}{}

		emit(cfg.progress, ProgressEvent{
			Stage:        StageExtracting,
			Path:         e.Header.InnerPath,
			EntriesDone:  i,
			EntriesTotal: len(a.entries),
			BytesDone:    stats.TotalBytes,
		})
		n, err := extractEntry(ctx, root, name, flags, e)
		if err != nil {
			return stats, fmt.Errorf("extract %s: %w", e.Header.InnerPath, err)
		}
		stats.FileCount++
		stats.TotalBytes += n
		records = append(records, MetadataRecord{
			InnerPath: e.Header.InnerPath,
			SkinFlag:  e.Header.SkinFlag,
			Unknown:   e.Header.Unknown,
		})
	}

	if cfg.metadataName != "" {
		if err := writeSidecar(root, cfg.metadataName, flags, records); err != nil {
			return stats, fmt.Errorf("write %s: %w", cfg.metadataName, err)
		}
	}
	a.log().Info("extracted archive",
		slog.String("dir", dir),
		slog.Int("files", stats.FileCount),
		slog.Int64("bytes", stats.TotalBytes))
	return stats, nil
}

func extractEntry(ctx context.Context, root *os.Root, name string, flags int, e *Entry) (int64, error) {
	if d := path.Dir(name); d != "." {
		if err := root.MkdirAll(d, 0o750); err != nil {
			return 0, err
		}
	}
	f, err := root.OpenFile(name, flags, 0o644)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(f, readBufferSize)
	n, err := writeRaw(ctx, bw, e.source)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func writeSidecar(root *os.Root, name string, flags int, records []MetadataRecord) error {
	f, err := root.OpenFile(name, flags, 0o644)
	if err != nil {
		return err
	}
	err = WriteMetadata(f, records)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
