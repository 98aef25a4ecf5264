package mpc

import (
	"github.com/pkg/errors"
)

// SuffixOr returns z with z[i] = OR of y[j] over j >= i, i.e. bit i is set
// iff some bit at position i or above is set. OR(p, q) = p ^ q ^ (p & q);
// the scan doubles its reach every round, so it takes ceil(log2(width))
// AND rounds.
func (mpcObj *MPC) SuffixOr(y BitShares) (BitShares, error) {
	z := y
	for shift := 1; shift < y.Width(); shift <<= 1 {
		t := z.ShiftRight(shift)
		zt, err := mpcObj.AndBits(z, t)
		if err != nil {
			return BitShares{}, errors.Wrapf(err, "SuffixOr: shift %d", shift)
		}
		z = z.Xor(t).Xor(zt)
	}
	return z, nil
}

// LessThanBitsMasked returns width-1 shares of [R < x] for public values R
// and shared values x, compared on the width of x.
//
// With y = x XOR R, the suffix-OR z marks every position at or below the
// most significant differing bit, so w = z XOR (z >> 1) has exactly that
// bit set, or nothing if R == x. R < x iff R has a 0 there.
func (mpcObj *MPC) LessThanBitsMasked(R []uint64, x BitShares) (BitShares, error) {
	if len(R) != x.Len() {
		panic("LessThanBitsMasked: length mismatch")
	}
	mask := lowMask(x.Width())

	y := mpcObj.XorPublic(x, R)
	z, err := mpcObj.SuffixOr(y)
	if err != nil {
		return BitShares{}, errors.Wrap(err, "LessThanBitsMasked")
	}
	w := z.Xor(z.ShiftRight(1))

	notR := make([]uint64, len(R))
	for i := range R {
		notR[i] = ^R[i] & mask
	}
	return w.AndPublic(notR).Parity(), nil
}
