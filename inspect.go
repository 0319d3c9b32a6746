package strm

import (
	"context"
	_ "crypto/sha256" // registers digest.Canonical
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/strm/internal/crc"
)

// Inspect returns a description of every entry, including a sha256 digest
// of its decoded payload.
func (a *Archive) Inspect(ctx context.Context) ([]EntryInfo, error) {
	infos := make([]EntryInfo, 0, len(a.entries))
	for i, e := range a.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := digest.Canonical.Digester()
		if _, err := writeRaw(ctx, d.Hash(), e.source); err != nil {
			return nil, fmt.Errorf("entry %d %s: %w", i, e.Header.InnerPath, err)
		}
		info := EntryInfo{
			Index:      i,
			Path:       e.Header.InnerPath,
			SkinFlag:   e.Header.SkinFlag,
			Unknown:    e.Header.Unknown,
			StoredSize: e.source.StoredLen(),
			RawSize:    e.source.RawLen(),
			Compressed: e.source.IsCompressed(),
			Digest:     d.Digest(),
		}
		if e.parsed {
			info.Hash = e.Header.Hash
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Verify recomputes the CRC of every entry still holding the payload it was
// read with and compares it with the header hash. Entries whose source was
// replaced are skipped. Compressed payloads are also decoded to check them
// against the header's raw size.
func (a *Archive) Verify(ctx context.Context) error {
	for i, e := range a.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.parsed {
			continue
		}
		stored, err := storedBytes(e.source)
		if err != nil {
			return fmt.Errorf("entry %d %s: %w", i, e.Header.InnerPath, err)
		}
		if got := crc.Checksum(a.hashParams, stored); got != e.Header.Hash {
			return fmt.Errorf("entry %d %s: %w: header %08x, computed %08x",
				i, e.Header.InnerPath, ErrHashMismatch, e.Header.Hash, got)
		}
		if e.source.IsCompressed() {
			if _, err := decodeStored(stored, e.source.RawLen()); err != nil {
				return fmt.Errorf("entry %d %s: %w", i, e.Header.InnerPath, err)
			}
		}
	}
	return nil
}
