// Package testutil provides fixtures shared by strm tests.
package testutil

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

// TestEntry holds the fields of one hand-encoded archive entry.
type TestEntry struct {
	CompressedSize   uint32
	DecompressedSize uint32
	Hash             uint32
	Unknown          uint16
	SkinFlag         int16
	InnerPath        string
	Payload          []byte
}

// BuildArchive encodes entries in the on-disk layout without going through
// the package's writer, so readers can be tested against known bytes.
// Sizes are taken verbatim from each entry.
func BuildArchive(tb testing.TB, entries []TestEntry) []byte {
	tb.Helper()

	buf := []byte("strm")
	for _, e := range entries {
		buf = binary.BigEndian.AppendUint32(buf, e.CompressedSize)
		buf = binary.BigEndian.AppendUint32(buf, e.DecompressedSize)
		buf = binary.BigEndian.AppendUint32(buf, e.Hash)
		buf = binary.BigEndian.AppendUint16(buf, e.Unknown)
		buf = binary.BigEndian.AppendUint16(buf, uint16(e.SkinFlag)) //nolint:gosec // two's complement
		buf = append(buf, e.InnerPath...)
		buf = append(buf, 0)
		buf = append(buf, e.Payload...)
	}
	return buf
}

// RawEntry returns a TestEntry for an uncompressed payload.
func RawEntry(path string, flag int16, payload []byte) TestEntry {
	return TestEntry{
		DecompressedSize: uint32(len(payload)), //nolint:gosec // test payloads are small
		SkinFlag:         flag,
		InnerPath:        path,
		Payload:          payload,
	}
}

// WriteFile writes data to dir/name, creating parent directories.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Repeat returns n bytes cycling through pattern.
func Repeat(pattern string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// Random returns n deterministic pseudo-random bytes for seed.
func Random(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // test data
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(r.Uint32())
	}
	return out
}

// Text returns n bytes of compressible, word-like text.
func Text(seed uint64, n int) []byte {
	words := []string{"chara", "hero", "body", "mdl", "texture", "skin", "alt", "base", " ", "\n"}
	r := rand.New(rand.NewPCG(seed, 1)) //nolint:gosec // test data
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, words[r.IntN(len(words))]...)
	}
	return out[:n]
}

// ByteSource is an in-memory io.ReaderAt.
type ByteSource struct {
	data []byte
}

// NewByteSource returns a reader over data.
func NewByteSource(data []byte) *ByteSource {
	return &ByteSource{data: data}
}

// ReadAt implements io.ReaderAt.
func (m *ByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *ByteSource) Bytes() []byte {
	return m.data
}
