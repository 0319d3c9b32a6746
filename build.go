package strm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileResolver locates the loose file holding an entry's payload.
type FileResolver interface {
	Resolve(innerPath string, flag SkinFlag) (string, error)
}

// DirResolver resolves loose files under Root using LooseFileName.
type DirResolver struct {
	Root string
}

// Resolve implements FileResolver.
func (d DirResolver) Resolve(innerPath string, flag SkinFlag) (string, error) {
	return filepath.Join(d.Root, filepath.FromSlash(LooseFileName(innerPath, flag))), nil
}

// Build creates an archive with one RawFile entry per record, in order.
//
// Payloads are not read until the archive is saved. Every loose file must
// exist when Build runs.
func Build(ctx context.Context, records []MetadataRecord, resolver FileResolver, opts ...Option) (*Archive, error) {
	a := New(opts...)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec.SkinFlag.IsLookup() {
			return nil, fmt.Errorf("record %d %s: %s: %w", i, rec.InnerPath, rec.SkinFlag, ErrInvalidFlag)
		}
		path, err := resolver.Resolve(rec.InnerPath, rec.SkinFlag)
		if err != nil {
			return nil, fmt.Errorf("record %d %s: resolve: %w", i, rec.InnerPath, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("record %d %s: %w", i, rec.InnerPath, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("record %d %s: %s is not a regular file", i, rec.InnerPath, path)
		}

		e := &Entry{Header: Header{
			Unknown:   rec.Unknown,
			SkinFlag:  rec.SkinFlag,
			InnerPath: rec.InnerPath,
		}}
		e.SetSource(RawFile{Path: path, Length: info.Size()})
		a.entries = append(a.entries, e)
		a.log().Debug("added loose file",
			slog.String("path", rec.InnerPath),
			slog.String("flag", rec.SkinFlag.String()),
			slog.String("file", path))
	}
	a.log().Info("built archive", slog.Int("entries", len(a.entries)))
	return a, nil
}

// BuildDir reads the metadata sidecar in dir and builds an archive from the
// loose files next to it.
func BuildDir(ctx context.Context, dir string, opts ...Option) (*Archive, error) {
	f, err := os.Open(filepath.Join(dir, DefaultMetadataName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadMetadata(f)
	if err != nil {
		return nil, err
	}
	return Build(ctx, records, DirResolver{Root: dir}, opts...)
}
