package mpc

import (
	"fmt"
	"math/bits"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
)

// BitShares holds XOR shares of n values of a fixed bit width. Value i is
// packed into one BElem word, least significant bit first: bit j of the
// word is bit j of the value. Bits at or above the width are always zero.
type BitShares struct {
	words mpc_core.RVec
	width int
}

func checkWidth(width int) {
	if width < 1 || width > mpc_core.BElemBits {
		panic(fmt.Sprintf("bit width %d out of range [1, %d]", width, mpc_core.BElemBits))
	}
}

func lowMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// NewBitShares wraps share words, clearing every bit at or above width.
func NewBitShares(words mpc_core.RVec, width int) BitShares {
	checkWidth(width)
	mask := lowMask(width)
	out := make(mpc_core.RVec, len(words))
	for i := range words {
		out[i] = mpc_core.BElem(words[i].Uint64() & mask)
	}
	return BitShares{words: out, width: width}
}

func ZeroBitShares(n, width int) BitShares {
	checkWidth(width)
	return BitShares{words: mpc_core.InitRVec(mpc_core.BElem(0), n), width: width}
}

// BitDecompose returns the width low bits of v, least significant first.
func BitDecompose(v uint64, width int) []uint64 {
	checkWidth(width)
	out := make([]uint64, width)
	for i := range out {
		out[i] = (v >> uint(i)) & 1
	}
	return out
}

func (x BitShares) Width() int {
	return x.width
}

func (x BitShares) Len() int {
	return len(x.words)
}

// Words returns a copy of the packed share words.
func (x BitShares) Words() mpc_core.RVec {
	out := make(mpc_core.RVec, len(x.words))
	copy(out, x.words)
	return out
}

func (x BitShares) mapWords(width int, fn func(uint64) uint64) BitShares {
	mask := lowMask(width)
	out := make(mpc_core.RVec, len(x.words))
	for i := range x.words {
		out[i] = mpc_core.BElem(fn(x.words[i].Uint64()) & mask)
	}
	return BitShares{words: out, width: width}
}

// Bit extracts bit i of every value as a width-1 share.
func (x BitShares) Bit(i int) BitShares {
	if i < 0 || i >= x.width {
		panic(fmt.Sprintf("bit index %d out of range for width %d", i, x.width))
	}
	return x.mapWords(1, func(w uint64) uint64 { return w >> uint(i) })
}

// Low keeps the width low bits of every value.
func (x BitShares) Low(width int) BitShares {
	checkWidth(width)
	if width > x.width {
		panic(fmt.Sprintf("cannot widen bit shares from %d to %d", x.width, width))
	}
	return x.mapWords(width, func(w uint64) uint64 { return w })
}

func (x BitShares) Xor(y BitShares) BitShares {
	if x.width != y.width || len(x.words) != len(y.words) {
		panic(fmt.Sprintf("Xor: mismatched bit shares (%d x %d bits vs %d x %d bits)", len(x.words), x.width, len(y.words), y.width))
	}
	out := make(mpc_core.RVec, len(x.words))
	for i := range out {
		out[i] = x.words[i].Add(y.words[i])
	}
	return BitShares{words: out, width: x.width}
}

// AndPublic ANDs each value with a public mask. Local on every share.
func (x BitShares) AndPublic(mask []uint64) BitShares {
	if len(mask) != len(x.words) {
		panic("AndPublic: length mismatch")
	}
	out := make(mpc_core.RVec, len(x.words))
	for i := range out {
		out[i] = mpc_core.BElem(x.words[i].Uint64() & mask[i] & lowMask(x.width))
	}
	return BitShares{words: out, width: x.width}
}

// ShiftRight shifts every value right by s bits within its width.
func (x BitShares) ShiftRight(s int) BitShares {
	if s < 0 {
		panic("ShiftRight: negative shift")
	}
	if s >= x.width {
		return ZeroBitShares(len(x.words), x.width)
	}
	return x.mapWords(x.width, func(w uint64) uint64 { return w >> uint(s) })
}

// Parity returns the XOR of all bits of every value as a width-1 share.
func (x BitShares) Parity() BitShares {
	return x.mapWords(1, func(w uint64) uint64 { return uint64(bits.OnesCount64(w)) })
}

// XorPublic XORs public values into x; only the hub changes its share.
func (mpcObj *MPC) XorPublic(x BitShares, pub []uint64) BitShares {
	if len(pub) != x.Len() {
		panic("XorPublic: length mismatch")
	}
	if !mpcObj.isHub() {
		return x.mapWords(x.width, func(w uint64) uint64 { return w })
	}
	out := make(mpc_core.RVec, x.Len())
	mask := lowMask(x.width)
	for i := range out {
		out[i] = mpc_core.BElem((x.words[i].Uint64() ^ pub[i]) & mask)
	}
	return BitShares{words: out, width: x.width}
}

// NotBits flips every bit within the width.
func (mpcObj *MPC) NotBits(x BitShares) BitShares {
	ones := make([]uint64, x.Len())
	for i := range ones {
		ones[i] = lowMask(x.width)
	}
	return mpcObj.XorPublic(x, ones)
}

// AndBits computes the bitwise AND of two shared vectors with one Beaver
// round over BElem words; both operands are opened together.
func (mpcObj *MPC) AndBits(a, b BitShares) (BitShares, error) {
	if a.width != b.width || a.Len() != b.Len() {
		panic(fmt.Sprintf("AndBits: mismatched bit shares (%d x %d bits vs %d x %d bits)", a.Len(), a.width, b.Len(), b.width))
	}
	if a.Len() == 0 {
		return a, nil
	}

	ar, am, err := mpcObj.BeaverPartitionMat(mpc_core.RMat{a.words, b.words})
	if err != nil {
		return BitShares{}, errors.Wrap(err, "AndBits")
	}
	prod := mpcObj.BeaverMultElemVec(ar[0], am[0], ar[1], am[1])
	out, err := mpcObj.BeaverReconstructVec(prod)
	if err != nil {
		return BitShares{}, errors.Wrap(err, "AndBits")
	}
	return NewBitShares(out, a.width), nil
}

// RevealBits opens binary shares among the computing parties. Party 0
// gets its own (zero) words back.
func (mpcObj *MPC) RevealBits(x BitShares) ([]uint64, error) {
	opened, err := mpcObj.RevealSymVec(x.words)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(opened))
	mask := lowMask(x.width)
	for i := range opened {
		out[i] = opened[i].Uint64() & mask
	}
	return out, nil
}

// ShareBits splits public values held by the hub into binary shares: the
// hub holds the values and everyone else zero. Used to enter test
// inputs; it hides nothing.
func (mpcObj *MPC) ShareBits(vals []uint64, width int) BitShares {
	out := ZeroBitShares(len(vals), width)
	if mpcObj.GetPid() == 0 {
		return out
	}
	return mpcObj.XorPublic(out, vals)
}
