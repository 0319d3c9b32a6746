package strm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meigma/strm/internal/chunk"
	"github.com/meigma/strm/internal/codec"
	"github.com/meigma/strm/internal/ioutil"
	"github.com/meigma/strm/internal/sizing"
)

// Source describes where an entry's payload bytes live.
//
// The four implementations are [RawFile], [RawBytes], [CompressedFile], and
// [CompressedBytes]. Sources are immutable; transformations return a new
// value.
type Source interface {
	// ReadRaw returns the decoded payload. Compressed sources are decoded on
	// every call.
	ReadRaw() ([]byte, error)

	// WriteRawTo writes the decoded payload to w.
	WriteRawTo(w io.Writer) (int64, error)

	// WriteStoredTo copies the codec stream to w verbatim. Raw sources
	// return ErrNotCompressed.
	WriteStoredTo(w io.Writer) (int64, error)

	// ToCompressed encodes the payload and returns a CompressedBytes when
	// the result is strictly smaller than the current stored length.
	// Otherwise it returns the receiver.
	ToCompressed(ctx context.Context, effort, chunkSize int) (Source, error)

	// StoredLen is the payload length as it sits in the archive.
	StoredLen() int64

	// RawLen is the decoded payload length.
	RawLen() int64

	// IsCompressed reports whether the stored bytes are a codec stream.
	IsCompressed() bool

	isSource()
}

// RawFile is an uncompressed payload in a region of a file.
type RawFile struct {
	Path   string
	Offset int64
	Length int64

	// ra reads the region when set; otherwise Path is opened per read.
	ra io.ReaderAt
}

// RawBytes is an uncompressed payload held in memory.
type RawBytes struct {
	Data []byte
}

// CompressedFile is a codec stream in a region of a file.
type CompressedFile struct {
	Path         string
	Offset       int64
	StoredLength int64
	RawLength    int64

	ra io.ReaderAt
}

// CompressedBytes is a codec stream held in memory.
type CompressedBytes struct {
	Data      []byte
	RawLength int64
}

func (RawFile) isSource()         {}
func (RawBytes) isSource()        {}
func (CompressedFile) isSource()  {}
func (CompressedBytes) isSource() {}

// --- RawFile ---

// ReadRaw implements Source.
func (s RawFile) ReadRaw() ([]byte, error) {
	return readRegion(s.ra, s.Path, s.Offset, s.Length)
}

// WriteRawTo implements Source.
func (s RawFile) WriteRawTo(w io.Writer) (int64, error) {
	return copyRegion(context.Background(), w, s.ra, s.Path, s.Offset, s.Length)
}

// WriteStoredTo implements Source.
func (s RawFile) WriteStoredTo(io.Writer) (int64, error) { return 0, ErrNotCompressed }

// ToCompressed implements Source.
func (s RawFile) ToCompressed(ctx context.Context, effort, chunkSize int) (Source, error) {
	return compressSource(ctx, s, effort, chunkSize)
}

// StoredLen implements Source.
func (s RawFile) StoredLen() int64 { return s.Length }

// RawLen implements Source.
func (s RawFile) RawLen() int64 { return s.Length }

// IsCompressed implements Source.
func (RawFile) IsCompressed() bool { return false }

// --- RawBytes ---

// ReadRaw implements Source. The returned slice aliases Data.
func (s RawBytes) ReadRaw() ([]byte, error) { return s.Data, nil }

// WriteRawTo implements Source.
func (s RawBytes) WriteRawTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.Data)
	return int64(n), err
}

// WriteStoredTo implements Source.
func (RawBytes) WriteStoredTo(io.Writer) (int64, error) { return 0, ErrNotCompressed }

// ToCompressed implements Source.
func (s RawBytes) ToCompressed(ctx context.Context, effort, chunkSize int) (Source, error) {
	return compressSource(ctx, s, effort, chunkSize)
}

// StoredLen implements Source.
func (s RawBytes) StoredLen() int64 { return int64(len(s.Data)) }

// RawLen implements Source.
func (s RawBytes) RawLen() int64 { return int64(len(s.Data)) }

// IsCompressed implements Source.
func (RawBytes) IsCompressed() bool { return false }

// --- CompressedFile ---

// ReadRaw implements Source.
func (s CompressedFile) ReadRaw() ([]byte, error) {
	stored, err := readRegion(s.ra, s.Path, s.Offset, s.StoredLength)
	if err != nil {
		return nil, err
	}
	return decodeStored(stored, s.RawLength)
}

// WriteRawTo implements Source.
func (s CompressedFile) WriteRawTo(w io.Writer) (int64, error) {
	raw, err := s.ReadRaw()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(raw)
	return int64(n), err
}

// WriteStoredTo implements Source.
func (s CompressedFile) WriteStoredTo(w io.Writer) (int64, error) {
	return copyRegion(context.Background(), w, s.ra, s.Path, s.Offset, s.StoredLength)
}

// ToCompressed implements Source.
func (s CompressedFile) ToCompressed(ctx context.Context, effort, chunkSize int) (Source, error) {
	return compressSource(ctx, s, effort, chunkSize)
}

// StoredLen implements Source.
func (s CompressedFile) StoredLen() int64 { return s.StoredLength }

// RawLen implements Source.
func (s CompressedFile) RawLen() int64 { return s.RawLength }

// IsCompressed implements Source.
func (CompressedFile) IsCompressed() bool { return true }

// --- CompressedBytes ---

// ReadRaw implements Source.
func (s CompressedBytes) ReadRaw() ([]byte, error) {
	return decodeStored(s.Data, s.RawLength)
}

// WriteRawTo implements Source.
func (s CompressedBytes) WriteRawTo(w io.Writer) (int64, error) {
	raw, err := s.ReadRaw()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(raw)
	return int64(n), err
}

// WriteStoredTo implements Source.
func (s CompressedBytes) WriteStoredTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.Data)
	return int64(n), err
}

// ToCompressed implements Source.
func (s CompressedBytes) ToCompressed(ctx context.Context, effort, chunkSize int) (Source, error) {
	return compressSource(ctx, s, effort, chunkSize)
}

// StoredLen implements Source.
func (s CompressedBytes) StoredLen() int64 { return int64(len(s.Data)) }

// RawLen implements Source.
func (s CompressedBytes) RawLen() int64 { return s.RawLength }

// IsCompressed implements Source.
func (CompressedBytes) IsCompressed() bool { return true }

// --- helpers ---

var errRegionSize = fmt.Errorf("region length: %w", ErrSizeOverflow)

// readerFor returns ra, or opens path when ra is nil. The returned close
// func is always non-nil.
func readerFor(ra io.ReaderAt, path string) (io.ReaderAt, func() error, error) {
	if ra != nil {
		return ra, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func readRegion(ra io.ReaderAt, path string, off, length int64) ([]byte, error) {
	if length < 0 {
		return nil, errRegionSize
	}
	n, err := sizing.ToInt(uint64(length), errRegionSize)
	if err != nil {
		return nil, err
	}
	r, closeFn, err := readerFor(ra, path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	buf := make([]byte, n)
	got, err := r.ReadAt(buf, off)
	if got == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s has %d of %d bytes at offset %d", ErrTruncated, path, got, n, off)
	}
	return nil, err
}

// writeRaw writes the decoded payload of s to w. File-backed raw regions
// are streamed and stop early when ctx is cancelled.
func writeRaw(ctx context.Context, w io.Writer, s Source) (int64, error) {
	if f, ok := s.(RawFile); ok {
		return copyRegion(ctx, w, f.ra, f.Path, f.Offset, f.Length)
	}
	return s.WriteRawTo(w)
}

func copyRegion(ctx context.Context, w io.Writer, ra io.ReaderAt, path string, off, length int64) (int64, error) {
	r, closeFn, err := readerFor(ra, path)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	buf := make([]byte, 32<<10)
	n, err := ioutil.CopyWithContext(ctx, w, io.NewSectionReader(r, off, length), buf)
	if err != nil {
		return n, err
	}
	if n != length {
		return n, fmt.Errorf("%w: %s has %d of %d bytes at offset %d", ErrTruncated, path, n, length, off)
	}
	return n, nil
}

func decodeStored(stored []byte, rawLength int64) ([]byte, error) {
	rawLen, err := sizing.ToInt(uint64(max(rawLength, 0)), errRegionSize)
	if err != nil {
		return nil, err
	}
	return codec.Decode(stored, len(stored), rawLen)
}

// compressSource encodes s and keeps the result only if it shrinks the
// stored length.
func compressSource(ctx context.Context, s Source, effort, chunkSize int) (Source, error) {
	raw, err := s.ReadRaw()
	if err != nil {
		return nil, err
	}
	enc, err := chunk.Compress(ctx, raw, effort, chunkSize)
	if err != nil {
		return nil, err
	}
	if int64(len(enc)) >= s.StoredLen() {
		return s, nil
	}
	return CompressedBytes{Data: enc, RawLength: int64(len(raw))}, nil
}

// storedBytes returns the payload exactly as it would sit in the archive.
func storedBytes(s Source) ([]byte, error) {
	switch v := s.(type) {
	case RawBytes:
		return v.Data, nil
	case CompressedBytes:
		return v.Data, nil
	case RawFile:
		return readRegion(v.ra, v.Path, v.Offset, v.Length)
	case CompressedFile:
		return readRegion(v.ra, v.Path, v.Offset, v.StoredLength)
	default:
		panic(fmt.Sprintf("strm: unknown source type %T", s))
	}
}

