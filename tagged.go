// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

// Tagged word layout.
//
// The heads of the linked structures in this package (stack top, pool
// free list) are a single 64-bit word so they can be compared-and-swapped
// with a plain hardware CAS — 128-bit CAS is not universally lock-free.
// The word splits into a 48-bit slot index and a 16-bit version tag:
//
//	[63 ──── 48][47 ──────────────────────── 0]
//	│    tag    │        index + 1            │
//	└───────────┴─────────────────────────────┘
//
// The index field stores index+1 so that 0 encodes the nil link; an
// empty list keeps its tag. The tag increments on every successful
// mutation, which is the ABA defense: even when a slot is recycled and
// reappears at the same index, any CAS still expecting the old tag
// fails. 48 bits of index correspond to the virtual-address width the
// original packed-pointer trick relied on; here they bound a slab to
// 2^48-2 slots, which is not a practical limit.
//
// After 65536 mutations land the same index back at the same tag there
// is a vanishingly small residual ABA window. It is accepted rather
// than eliminated: widening the tag would require a double-width CAS.
const (
	taggedIndexBits = 48
	taggedIndexMask = uint64(1)<<taggedIndexBits - 1
)

// packTagged builds a tagged word from a slot index and a tag. The tag's
// low 16 bits are kept; the shift discards the rest.
func packTagged(idx uint64, tag uint64) uint64 {
	return tag<<taggedIndexBits | (idx + 1)
}

// taggedIndex extracts the slot index. ok is false for the nil link.
func taggedIndex(w uint64) (idx uint64, ok bool) {
	biased := w & taggedIndexMask
	return biased - 1, biased != 0
}

// taggedTag extracts the version tag.
func taggedTag(w uint64) uint64 {
	return w >> taggedIndexBits
}
