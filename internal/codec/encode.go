package codec

import (
	"context"
	"errors"
	"math"
)

const (
	// DefaultEffort is the chain search depth used when Encode is called with
	// a non-positive effort.
	DefaultEffort = 16

	// MinMatch is the shortest run worth a back-reference record.
	MinMatch = 3
)

// Sentinel errors.
var (
	// ErrUnexpectedEnd is returned when the stream ends before the declared
	// raw length has been produced.
	ErrUnexpectedEnd = errors.New("codec: unexpected end of data")

	// ErrTrailingData is returned when the declared raw length is reached
	// with stream bytes left over.
	ErrTrailingData = errors.New("codec: trailing data after payload")

	// ErrCorrupt is returned when a record cannot be applied to the output.
	ErrCorrupt = errors.New("codec: corrupt stream")

	// ErrTooLarge is returned when an input cannot be indexed by the encoder.
	ErrTooLarge = errors.New("codec: input too large")
)

// matcher holds the per-call hash chains. lastByteIndex maps a byte value to
// its most recent position; prevSameByteIndex links each position to the
// previous position holding the same byte. -1 ends a chain.
type matcher struct {
	src               []byte
	effort            int
	lastByteIndex     [256]int32
	prevSameByteIndex []int32
}

func newMatcher(src []byte, effort int) *matcher {
	m := &matcher{
		src:               src,
		effort:            effort,
		prevSameByteIndex: make([]int32, len(src)),
	}
	for i := range m.lastByteIndex {
		m.lastByteIndex[i] = -1
	}
	return m
}

// link inserts position i at the head of its byte's chain.
func (m *matcher) link(i int) {
	b := m.src[i]
	m.prevSameByteIndex[i] = m.lastByteIndex[b]
	m.lastByteIndex[b] = int32(i) //nolint:gosec // len(src) checked against MaxInt32
}

// longest walks up to effort chain candidates for position i and returns the
// longest repeated run and its lookback distance. The comparison source wraps
// every lookback bytes, so runs may be longer than their distance.
func (m *matcher) longest(i int) (run, lookback int) {
	src := m.src
	remaining := len(src) - i
	j := int(m.lastByteIndex[src[i]])
	for tries := 0; j >= 0 && tries < m.effort; tries++ {
		dist := i - j
		n := 1
		for n < remaining && src[i+n] == src[j+n%dist] {
			n++
		}
		if n > run {
			run, lookback = n, dist
			if n == remaining {
				break
			}
		}
		j = int(m.prevSameByteIndex[j])
	}
	return run, lookback
}

// Encode compresses src into a legacy stream.
//
// effort bounds the number of chain candidates inspected per position;
// values <= 0 use DefaultEffort. The context is polled once per position.
func Encode(ctx context.Context, src []byte, effort int) ([]byte, error) {
	if len(src) > math.MaxInt32 {
		return nil, ErrTooLarge
	}
	if effort <= 0 {
		effort = DefaultEffort
	}

	out := make([]byte, 0, len(src)/2+16)
	if len(src) == 0 {
		return out, nil
	}

	m := newMatcher(src, effort)
	done := ctx.Done()
	literalStart := 0
	i := 0
	for i < len(src) {
		if done != nil {
			select {
			case <-done:
				return nil, ctx.Err()
			default:
			}
		}

		run, lookback := m.longest(i)
		pending := i - literalStart
		if run >= MinMatch && backrefCost(pending, run, lookback) <= literalCost(pending, run) {
			out = appendLiterals(out, src[literalStart:i])
			out = appendFlagged(out, uint64(run-MinMatch), true)
			out = appendVarint(out, uint64(lookback))
			for k := i; k < i+run; k++ {
				m.link(k)
			}
			i += run
			literalStart = i
			continue
		}

		m.link(i)
		i++
	}
	return appendLiterals(out, src[literalStart:]), nil
}

// backrefCost is the size of flushing pending literals and emitting a
// back-reference of run bytes at lookback.
func backrefCost(pending, run, lookback int) int {
	cost := flaggedLen(uint64(run-MinMatch)) + varintLen(uint64(lookback))
	if pending > 0 {
		cost += flaggedLen(uint64(pending)) + pending
	}
	return cost
}

// literalCost is the size of emitting pending and run bytes as one literal record.
func literalCost(pending, run int) int {
	return flaggedLen(uint64(pending+run)) + pending + run
}

func appendLiterals(dst, lit []byte) []byte {
	if len(lit) == 0 {
		return dst
	}
	dst = appendFlagged(dst, uint64(len(lit)), false)
	return append(dst, lit...)
}
