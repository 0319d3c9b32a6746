// Package crc implements the CRC32 variant stored in strm entry headers.
//
// The register starts at a configurable seed and the result is not
// complemented. Polynomials use the reversed (LSB-first) form accepted by
// hash/crc32.
package crc

import (
	"hash"
	"hash/crc32"
)

// Size of a CRC32 checksum in bytes.
const Size = 4

// Params selects the seed and polynomial.
type Params struct {
	Seed uint32
	Poly uint32
}

type digest struct {
	params Params
	table  *crc32.Table
	reg    uint32
}

// New returns a hash.Hash32 computing the CRC with p.
func New(p Params) hash.Hash32 {
	return &digest{params: p, table: crc32.MakeTable(p.Poly), reg: p.Seed}
}

// Checksum returns the CRC of data with p.
func Checksum(p Params, data []byte) uint32 {
	return update(p.Seed, crc32.MakeTable(p.Poly), data)
}

// update advances the raw register. crc32.Update complements its input and
// output, so both are undone here.
func update(reg uint32, tab *crc32.Table, p []byte) uint32 {
	return ^crc32.Update(^reg, tab, p)
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Reset() { d.reg = d.params.Seed }

func (d *digest) Write(p []byte) (int, error) {
	d.reg = update(d.reg, d.table, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return d.reg }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}
