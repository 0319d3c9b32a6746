package strm

import (
	"errors"

	"github.com/meigma/strm/internal/codec"
)

// Sentinel errors.
var (
	// ErrBadMagic is returned when the input does not start with "strm".
	ErrBadMagic = errors.New("strm: bad magic")

	// ErrTruncated is returned when a header or payload is cut short.
	ErrTruncated = errors.New("strm: truncated archive")

	// ErrNotFound is returned when no entry matches a path and flag.
	ErrNotFound = errors.New("strm: entry not found")

	// ErrInvalidFlag is returned when a lookup sentinel is used as a stored flag.
	ErrInvalidFlag = errors.New("strm: invalid skin flag")

	// ErrNotCompressed is returned when stored bytes are requested from a raw source.
	ErrNotCompressed = errors.New("strm: source is not compressed")

	// ErrSizeOverflow is returned when a payload or path exceeds header limits.
	ErrSizeOverflow = errors.New("strm: size overflow")

	// ErrHashMismatch is returned when stored bytes do not match the header hash.
	ErrHashMismatch = errors.New("strm: hash verification failed")

	// ErrMetadata is returned when a metadata sidecar line is malformed.
	ErrMetadata = errors.New("strm: malformed metadata")
)

// Codec errors re-exported from internal/codec.
var (
	// ErrUnexpectedEnd is returned when a compressed payload ends before its
	// declared raw length.
	ErrUnexpectedEnd = codec.ErrUnexpectedEnd

	// ErrTrailingData is returned when a compressed payload has bytes left
	// after its declared raw length.
	ErrTrailingData = codec.ErrTrailingData

	// ErrCorrupt is returned when a compressed payload cannot be decoded.
	ErrCorrupt = codec.ErrCorrupt
)
