package strm

import (
	"hash/crc32"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/strm/internal/crc"
)

// Entry is one payload in an archive.
//
// Header carries the metadata read from or written to disk. Its size and hash
// fields describe the payload as last parsed; Write recomputes them for the
// output without modifying the entry.
type Entry struct {
	Header Header

	source Source

	// parsed is true while source is still the one read from the archive,
	// so Header.Hash describes its stored bytes.
	parsed bool
}

// Source returns the entry's payload source.
func (e *Entry) Source() Source {
	return e.source
}

// SetSource replaces the payload source and refreshes the header sizes.
// Other header fields are left untouched.
func (e *Entry) SetSource(s Source) {
	e.source = s
	e.parsed = false
	e.Header.DecompressedSize = clampUint32(s.RawLen())
	e.Header.CompressedSize = 0
	if s.IsCompressed() {
		e.Header.CompressedSize = clampUint32(s.StoredLen())
	}
	e.Header.Hash = 0
}

// Path returns the entry's inner path.
func (e *Entry) Path() string {
	return e.Header.InnerPath
}

// Flag returns the entry's skin flag.
func (e *Entry) Flag() SkinFlag {
	return e.Header.SkinFlag
}

func clampUint32(n int64) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(min(n, int64(^uint32(0)))) //nolint:gosec // clamped above
}

// DefaultSeed is the initial CRC register used for entry hashes.
//
// The value is unverified: it is the standard CRC32 start register, so with
// no final XOR the result equals JAMCRC. Hashes in archives made by other
// tools may use a different seed. Use WithHashParams to match them. Read
// never checks hashes, and SaveWithSkipAlreadyCompressed keeps the hashes
// of unchanged compressed entries.
const DefaultSeed uint32 = 0xffffffff

// DefaultHashParams returns the CRC parameters used when no WithHashParams
// option is given.
func DefaultHashParams() crc.Params {
	return crc.Params{Seed: DefaultSeed, Poly: crc32.IEEE}
}

// SaveStats summarizes a Write or Save.
type SaveStats struct {
	// Entries is the number of entries written.
	Entries int

	// Compressed counts entries stored as codec streams, including
	// passed-through ones.
	Compressed int

	// PassedThrough counts compressed entries copied without re-encoding.
	PassedThrough int

	// Transcoded counts XML payloads replaced by transcoder output.
	Transcoded int

	// CompressionFallbacks counts entries stored raw after a codec error.
	CompressionFallbacks int

	// RawBytes is the total decoded payload size.
	RawBytes int64

	// BytesWritten is the archive size including magic and headers.
	BytesWritten int64
}

// ExtractStats summarizes an Extract.
type ExtractStats struct {
	// FileCount is the number of loose files written.
	FileCount int

	// TotalBytes is the number of payload bytes written.
	TotalBytes int64

	// Skipped counts entries whose loose file name collided with an
	// earlier entry.
	Skipped int
}

// EntryInfo describes one entry for inspection.
type EntryInfo struct {
	Index      int
	Path       string
	SkinFlag   SkinFlag
	Unknown    uint16
	StoredSize int64
	RawSize    int64
	Compressed bool

	// Hash is the header CRC as last parsed. Zero for entries whose source
	// was replaced.
	Hash uint32

	// Digest is the sha256 of the decoded payload.
	Digest digest.Digest
}
