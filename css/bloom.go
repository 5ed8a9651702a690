package css

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// bloomFilter records class and id names whose only invalidation set would
// be the self-invalidation set. It answers "maybe" for names it has seen
// and "no" for most others.
type bloomFilter struct {
	bits *bitset.BitSet
	mask uint32
}

func newBloomFilter(keyBits uint) *bloomFilter {
	size := uint(1) << keyBits
	return &bloomFilter{bits: bitset.New(size), mask: uint32(size - 1)}
}

func saltedHash(value string, salt uint32) uint32 {
	return uint32(xxhash.Sum64String(value)) * salt
}

// slots derives two bit positions from one hash.
func (f *bloomFilter) slots(hash uint32) (uint, uint) {
	return uint(hash & f.mask), uint((hash >> 16) & f.mask)
}

func (f *bloomFilter) add(hash uint32) {
	a, b := f.slots(hash)
	f.bits.Set(a).Set(b)
}

func (f *bloomFilter) mayContain(hash uint32) bool {
	a, b := f.slots(hash)
	return f.bits.Test(a) && f.bits.Test(b)
}

// merge ORs other into f. Both filters must have the same size.
func (f *bloomFilter) merge(other *bloomFilter) {
	f.bits.InPlaceUnion(other.bits)
}

// saturate sets every bit so that every lookup answers "maybe".
func (f *bloomFilter) saturate() {
	for i := uint(0); i <= uint(f.mask); i++ {
		f.bits.Set(i)
	}
}

func (f *bloomFilter) clone() *bloomFilter {
	return &bloomFilter{bits: f.bits.Clone(), mask: f.mask}
}

func (f *bloomFilter) equal(other *bloomFilter) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.bits.Equal(other.bits)
}
