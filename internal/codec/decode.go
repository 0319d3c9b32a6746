package codec

import "fmt"

// maxPrealloc caps the output buffer allocated before any record is decoded.
// rawLen usually comes from an untrusted header.
const maxPrealloc = 1 << 20

// Decode expands the first storedLen bytes of stream into exactly rawLen bytes.
//
// Decoding stops once rawLen bytes are produced. Running out of stream before
// that returns ErrUnexpectedEnd; stream bytes left afterwards return
// ErrTrailingData. Partial output is never returned.
func Decode(stream []byte, storedLen, rawLen int) ([]byte, error) {
	if storedLen < 0 || rawLen < 0 {
		return nil, fmt.Errorf("%w: negative length", ErrCorrupt)
	}
	if storedLen > len(stream) {
		return nil, fmt.Errorf("%w: stored length %d exceeds %d available bytes", ErrUnexpectedEnd, storedLen, len(stream))
	}
	src := stream[:storedLen]
	out := make([]byte, 0, min(rawLen, maxPrealloc))

	in := 0
	for len(out) < rawLen {
		pos := len(out)
		v, backref, n, err := readFlagged(src[in:])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", in, err)
		}
		in += n
		left := uint64(rawLen - pos)

		if !backref {
			if v > left {
				return nil, fmt.Errorf("%w: literal run of %d overruns output at %d", ErrCorrupt, v, pos)
			}
			if v > uint64(len(src)-in) {
				return nil, fmt.Errorf("literal run at offset %d: %w", in, ErrUnexpectedEnd)
			}
			out = append(out, src[in:in+int(v)]...)
			in += int(v)
			continue
		}

		dist, m, err := readVarint(src[in:])
		if err != nil {
			return nil, fmt.Errorf("distance at offset %d: %w", in, err)
		}
		in += m
		if left < MinMatch || v > left-MinMatch {
			return nil, fmt.Errorf("%w: copy of %d overruns output at %d", ErrCorrupt, v+MinMatch, pos)
		}
		if dist == 0 || dist > uint64(pos) {
			return nil, fmt.Errorf("%w: distance %d at output %d", ErrCorrupt, dist, pos)
		}
		out = copyRun(out, int(dist), int(v)+MinMatch)
	}

	if in != len(src) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, len(src)-in)
	}
	return out, nil
}

// copyRun appends length bytes starting dist bytes back from the end of out,
// one dist-sized block at a time. When dist < length each block re-reads the
// block just appended.
func copyRun(out []byte, dist, length int) []byte {
	for length > 0 {
		n := min(dist, length)
		start := len(out) - dist
		out = append(out, out[start:start+n]...)
		length -= n
	}
	return out
}
