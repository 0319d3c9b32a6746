package strm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/meigma/strm/internal/ioutil"
	"github.com/meigma/strm/internal/sizing"
)

const (
	readBufferSize = 64 << 10

	// preallocLimit caps the buffer allocated up front for one payload, so a
	// corrupt size field cannot force a huge allocation before any data
	// arrives.
	preallocLimit = 1 << 20
)

// Read parses an archive from r. Every payload is loaded into memory.
func Read(r io.Reader, opts ...Option) (*Archive, error) {
	a := New(opts...)
	if err := a.parse(r, nil, ""); err != nil {
		return nil, err
	}
	return a, nil
}

// Open parses the archive at path.
//
// Payloads smaller than the eager threshold are loaded into memory; larger
// ones are read from the file on demand until Close.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	a := New(opts...)
	if err := a.parse(f, f, path); err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	a.file = f
	return a, nil
}

// parse reads entries until end of input. When f is set, large payloads are
// skipped with Seek and become file-backed sources.
func (a *Archive) parse(r io.Reader, f *os.File, path string) error {
	var fileSize int64
	if f != nil {
		info, err := f.Stat()
		if err != nil {
			return err
		}
		fileSize = info.Size()
	}

	br := bufio.NewReaderSize(r, readBufferSize)
	cr := &ioutil.CountingReader{R: br}

	var magic [len(Magic)]byte
	if _, err := io.ReadFull(cr, magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: input shorter than magic", ErrBadMagic)
		}
		return err
	}
	if string(magic[:]) != Magic {
		return fmt.Errorf("%w: %q", ErrBadMagic, magic[:])
	}

	for {
		h, err := ReadHeader(cr)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("entry %d: %w", len(a.entries), err)
		}

		offset := cr.N
		stored := int64(h.StoredSize())
		var src Source
		if f != nil && stored >= a.eagerThreshold {
			end := offset + stored
			if end > fileSize {
				return fmt.Errorf("entry %d %s: %w: payload ends at %d, file is %d bytes",
					len(a.entries), h.InnerPath, ErrTruncated, end, fileSize)
			}
			if _, err := f.Seek(end, io.SeekStart); err != nil {
				return err
			}
			br.Reset(f)
			cr.N = end
			src = fileSource(&h, path, offset, f)
		} else {
			data, err := readPayload(cr, stored)
			if err != nil {
				return fmt.Errorf("entry %d %s: %w", len(a.entries), h.InnerPath, err)
			}
			src = memorySource(&h, data)
		}

		a.appendParsed(h, src)
		a.log().Debug("read entry",
			slog.String("path", h.InnerPath),
			slog.String("flag", h.SkinFlag.String()),
			slog.Int64("stored", stored),
			slog.Int64("raw", int64(h.DecompressedSize)))
		emit(a.progress, ProgressEvent{
			Stage:       StageReading,
			Path:        h.InnerPath,
			EntriesDone: len(a.entries),
			BytesDone:   cr.N,
		})
	}

	a.log().Info("read archive",
		slog.String("path", path),
		slog.Int("entries", len(a.entries)),
		slog.Int64("bytes", cr.N))
	return nil
}

func readPayload(r io.Reader, n int64) ([]byte, error) {
	if n <= preallocLimit {
		data, err := sizing.ReadFull(r, int(n))
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: payload shorter than %d bytes", ErrTruncated, n)
		}
		return data, err
	}
	data, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("%w: payload has %d of %d bytes", ErrTruncated, len(data), n)
	}
	return data, nil
}

func memorySource(h *Header, data []byte) Source {
	if h.IsCompressed() {
		return CompressedBytes{Data: data, RawLength: int64(h.DecompressedSize)}
	}
	return RawBytes{Data: data}
}

func fileSource(h *Header, path string, offset int64, ra io.ReaderAt) Source {
	if h.IsCompressed() {
		return CompressedFile{
			Path:         path,
			Offset:       offset,
			StoredLength: int64(h.CompressedSize),
			RawLength:    int64(h.DecompressedSize),
			ra:           ra,
		}
	}
	return RawFile{Path: path, Offset: offset, Length: int64(h.DecompressedSize), ra: ra}
}
