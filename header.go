package strm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Magic is the four-byte signature at the start of every archive.
const Magic = "strm"

const (
	// fixedHeaderSize covers every header field before InnerPath.
	fixedHeaderSize = 16

	// maxInnerPath bounds InnerPath so a corrupt file cannot force an unbounded read.
	maxInnerPath = 4096
)

// Header is the on-disk metadata preceding each payload.
type Header struct {
	// CompressedSize is the stored payload length when compressed.
	// Zero means the payload is stored raw.
	CompressedSize uint32

	// DecompressedSize is the raw payload length.
	DecompressedSize uint32

	// Hash is the CRC32 of the stored bytes.
	Hash uint32

	// Unknown is carried through unchanged.
	Unknown uint16

	// SkinFlag selects the character variant.
	SkinFlag SkinFlag

	// InnerPath names the asset inside the archive.
	InnerPath string
}

// IsCompressed reports whether the stored payload is a codec stream.
func (h *Header) IsCompressed() bool {
	return h.CompressedSize != 0
}

// StoredSize returns the number of payload bytes following the header.
func (h *Header) StoredSize() uint32 {
	if h.CompressedSize != 0 {
		return h.CompressedSize
	}
	return h.DecompressedSize
}

// AppendHeader appends the big-endian encoding of h to dst.
func AppendHeader(dst []byte, h *Header) ([]byte, error) {
	if strings.IndexByte(h.InnerPath, 0) >= 0 {
		return nil, fmt.Errorf("encode header %q: inner path contains NUL", h.InnerPath)
	}
	if len(h.InnerPath) > maxInnerPath {
		return nil, fmt.Errorf("encode header: inner path %d bytes: %w", len(h.InnerPath), ErrSizeOverflow)
	}
	dst = binary.BigEndian.AppendUint32(dst, h.CompressedSize)
	dst = binary.BigEndian.AppendUint32(dst, h.DecompressedSize)
	dst = binary.BigEndian.AppendUint32(dst, h.Hash)
	dst = binary.BigEndian.AppendUint16(dst, h.Unknown)
	dst = binary.BigEndian.AppendUint16(dst, uint16(h.SkinFlag)) //nolint:gosec // two's complement round trip
	dst = append(dst, h.InnerPath...)
	return append(dst, 0), nil
}

// headerReader is satisfied by *bufio.Reader.
type headerReader interface {
	io.Reader
	io.ByteReader
}

// ReadHeader decodes one header from r.
//
// It returns io.EOF when r is exhausted exactly at a header boundary, and an
// error wrapping ErrTruncated when a header is cut short.
func ReadHeader(r headerReader) (Header, error) {
	var buf [fixedHeaderSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return Header{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: header has %d of %d bytes", ErrTruncated, n, fixedHeaderSize)
		}
		return Header{}, err
	}

	h := Header{
		CompressedSize:   binary.BigEndian.Uint32(buf[0:4]),
		DecompressedSize: binary.BigEndian.Uint32(buf[4:8]),
		Hash:             binary.BigEndian.Uint32(buf[8:12]),
		Unknown:          binary.BigEndian.Uint16(buf[12:14]),
		SkinFlag:         SkinFlag(binary.BigEndian.Uint16(buf[14:16])), //nolint:gosec // two's complement round trip
	}

	var path strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Header{}, fmt.Errorf("%w: inner path not terminated", ErrTruncated)
			}
			return Header{}, err
		}
		if b == 0 {
			break
		}
		if path.Len() == maxInnerPath {
			return Header{}, fmt.Errorf("read header: inner path over %d bytes: %w", maxInnerPath, ErrSizeOverflow)
		}
		path.WriteByte(b)
	}
	h.InnerPath = path.String()
	return h, nil
}
