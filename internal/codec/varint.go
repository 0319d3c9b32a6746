package codec

// Record headers are little-endian groups of seven bits with bit 7 as the
// continuation marker. The first byte of a flagged varint carries only six
// value bits; bit 6 marks a back-reference record.
const (
	continuationBit = 0x80
	backrefBit      = 0x40
	flaggedLowBits  = 6
	flaggedLowMask  = 1<<flaggedLowBits - 1
	groupBits       = 7
	groupMask       = 1<<groupBits - 1

	// maxVarintBytes bounds decoding so a corrupt stream cannot shift past 64 bits.
	maxVarintBytes = 10
)

// appendVarint appends v as a plain varint.
func appendVarint(dst []byte, v uint64) []byte {
	for v >= continuationBit {
		dst = append(dst, byte(v&groupMask)|continuationBit)
		v >>= groupBits
	}
	return append(dst, byte(v))
}

// appendFlagged appends v as a flagged varint.
func appendFlagged(dst []byte, v uint64, backref bool) []byte {
	first := byte(v & flaggedLowMask)
	if backref {
		first |= backrefBit
	}
	v >>= flaggedLowBits
	if v == 0 {
		return append(dst, first)
	}
	dst = append(dst, first|continuationBit)
	return appendVarint(dst, v)
}

// varintLen returns the encoded size of v as a plain varint.
func varintLen(v uint64) int {
	n := 1
	for v >= continuationBit {
		v >>= groupBits
		n++
	}
	return n
}

// flaggedLen returns the encoded size of v as a flagged varint.
func flaggedLen(v uint64) int {
	v >>= flaggedLowBits
	if v == 0 {
		return 1
	}
	return 1 + varintLen(v)
}

// readVarint decodes a plain varint from src, returning the value and the
// number of bytes consumed.
func readVarint(src []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < len(src); i++ {
		b := src[i]
		if i == maxVarintBytes-1 && b > 1 {
			return 0, 0, ErrCorrupt
		}
		v |= uint64(b&groupMask) << shift
		if b&continuationBit == 0 {
			return v, i + 1, nil
		}
		shift += groupBits
	}
	return 0, 0, ErrUnexpectedEnd
}

// readFlagged decodes a flagged varint from src.
func readFlagged(src []byte) (v uint64, backref bool, n int, err error) {
	if len(src) == 0 {
		return 0, false, 0, ErrUnexpectedEnd
	}
	first := src[0]
	v = uint64(first & flaggedLowMask)
	backref = first&backrefBit != 0
	if first&continuationBit == 0 {
		return v, backref, 1, nil
	}
	rest, m, err := readVarint(src[1:])
	if err != nil {
		return 0, false, 0, err
	}
	if m == maxVarintBytes && rest>>(64-flaggedLowBits) != 0 {
		return 0, false, 0, ErrCorrupt
	}
	return v | rest<<flaggedLowBits, backref, 1 + m, nil
}
