package strm

import (
	"math"
	"strconv"
)

// SkinFlag selects which character variant an entry belongs to.
//
// Concrete flags are stored in entry headers. LookupDefault and LookupAlt are
// query-only sentinels that aggregate several concrete flags; they are never
// written to disk.
type SkinFlag int16

// Concrete skin flags.
const (
	// SkinDefault marks a variant-less asset. It satisfies every lookup.
	SkinDefault SkinFlag = 0

	// SkinBaseA is character A's base costume.
	SkinBaseA SkinFlag = 1

	// SkinAltA is character A's alternate costume.
	SkinAltA SkinFlag = 2

	// SkinBaseB is character B's base costume.
	SkinBaseB SkinFlag = 3

	// SkinAltB is character B's alternate costume.
	SkinAltB SkinFlag = 4
)

// Lookup sentinels.
const (
	// LookupDefault matches SkinDefault and every non-alternate flag.
	LookupDefault SkinFlag = math.MinInt16

	// LookupAlt matches SkinDefault and every alternate flag.
	LookupAlt SkinFlag = math.MinInt16 + 1
)

// String returns the flag's name, or its number for values outside the
// enumeration.
func (f SkinFlag) String() string {
	switch f {
	case SkinDefault:
		return "default"
	case SkinBaseA:
		return "base-a"
	case SkinAltA:
		return "alt-a"
	case SkinBaseB:
		return "base-b"
	case SkinAltB:
		return "alt-b"
	case LookupDefault:
		return "lookup-default"
	case LookupAlt:
		return "lookup-alt"
	default:
		return strconv.Itoa(int(f))
	}
}

// IsAlt reports whether f is one of the alternate costume flags.
func (f SkinFlag) IsAlt() bool {
	return f == SkinAltA || f == SkinAltB
}

// IsLookup reports whether f is a query-only sentinel.
func (f SkinFlag) IsLookup() bool {
	return f == LookupDefault || f == LookupAlt
}

// MatchesLookup reports whether an entry stored with concrete satisfies query.
//
// Equal flags always match. LookupDefault matches SkinDefault and any flag
// that is not an alternate; LookupAlt matches SkinDefault and any alternate.
func MatchesLookup(concrete, query SkinFlag) bool {
	if concrete == query {
		return true
	}
	switch query {
	case LookupDefault:
		return !concrete.IsAlt()
	case LookupAlt:
		return concrete == SkinDefault || concrete.IsAlt()
	default:
		return false
	}
}
