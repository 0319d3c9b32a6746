package strm

import (
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/meigma/strm/internal/crc"
)

// defaultEagerThreshold is the payload size below which Open copies payloads
// into memory.
const defaultEagerThreshold = 64 << 10

// Archive is an ordered list of entries.
//
// Lookups scan in entry order. Entry order is preserved on save.
// An Archive is not safe for concurrent mutation.
type Archive struct {
	entries []*Entry

	// file backs lazy sources created by Open.
	file *os.File

	logger         *slog.Logger
	eagerThreshold int64
	hashParams     crc.Params
	progress       ProgressFunc
}

// New returns an empty archive.
func New(opts ...Option) *Archive {
	a := &Archive{
		eagerThreshold: defaultEagerThreshold,
		hashParams:     DefaultHashParams(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Close releases the file opened by Open. Lazy sources cannot be read
// afterwards. Close is safe to call on archives without a file.
func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries iterates over the entries in order.
func (a *Archive) Entries() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for i, e := range a.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Entry returns the entry at index i. It panics if i is out of range.
func (a *Archive) Entry(i int) *Entry {
	return a.entries[i]
}

// GetEntry returns the entry stored under path for flag.
//
// A concrete flag returns the first entry with exactly that flag. A lookup
// sentinel returns the first matching entry with a non-default flag, falling
// back to the first matching SkinDefault entry.
func (a *Archive) GetEntry(path string, flag SkinFlag) (*Entry, error) {
	var fallback *Entry
	for _, e := range a.entries {
		if !PathsEqual(e.Header.InnerPath, path) || !MatchesLookup(e.Header.SkinFlag, flag) {
			continue
		}
		if !flag.IsLookup() || e.Header.SkinFlag != SkinDefault {
			return e, nil
		}
		if fallback == nil {
			fallback = e
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("%s (%s): %w", path, flag, ErrNotFound)
}

// PutEntry stores src under path and flag.
//
// If an entry with the same path and exactly the same flag exists, its
// source is replaced in place and its other header fields are kept.
// Otherwise a new entry is inserted at position: negative positions count
// from the end, so -1 appends. Positions out of range are clamped. New
// entries copy Unknown from the first entry in the archive.
func (a *Archive) PutEntry(position int, path string, src Source, flag SkinFlag) (*Entry, error) {
	if flag.IsLookup() {
		return nil, fmt.Errorf("put %s: %s: %w", path, flag, ErrInvalidFlag)
	}
	if src == nil {
		return nil, fmt.Errorf("put %s: nil source", path)
	}

	for _, e := range a.entries {
		if e.Header.SkinFlag == flag && PathsEqual(e.Header.InnerPath, path) {
			e.SetSource(src)
			a.log().Debug("replaced entry", slog.String("path", path), slog.String("flag", flag.String()))
			return e, nil
		}
	}

	e := &Entry{Header: Header{SkinFlag: flag, InnerPath: path}}
	if len(a.entries) > 0 {
		e.Header.Unknown = a.entries[0].Header.Unknown
	}
	e.SetSource(src)

	idx := insertIndex(position, len(a.entries))
	a.entries = append(a.entries, nil)
	copy(a.entries[idx+1:], a.entries[idx:])
	a.entries[idx] = e
	a.log().Debug("inserted entry",
		slog.String("path", path),
		slog.String("flag", flag.String()),
		slog.Int("index", idx))
	return e, nil
}

// insertIndex maps a possibly negative position onto [0, n].
func insertIndex(position, n int) int {
	if position < 0 {
		position = n + 1 + position
	}
	return max(0, min(position, n))
}

// appendParsed adds an entry read from disk.
func (a *Archive) appendParsed(h Header, src Source) {
	a.entries = append(a.entries, &Entry{Header: h, source: src, parsed: true})
}
