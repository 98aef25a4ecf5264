package mpc

import (
	"fmt"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

func checkCompareBits(k int) {
	if k < 1 || k > MaxCompareBits {
		panic(fmt.Sprintf("bit width k = %d out of range [1, %d]", k, MaxCompareBits))
	}
}

// isNegativeDiff returns width-1 shares of [d < 0] for shared d with
// |d| < 2^k.
//
// c = 2d+1 is odd and fits in K = k+2 signed bits, and its top bit mod 2^K
// is the sign of d. With an edabit r of K bits (MSB forced to 1) the
// parties open eta = c + r mod 2^K. Subtracting r again bit by bit, the
// top bit of eta - r is eta[K-1] ^ r[K-1] ^ borrow, where the borrow into
// bit K-1 is [eta mod 2^(K-1) < r mod 2^(K-1)].
func (mpcObj *MPC) isNegativeDiff(d mpc_core.RVec, k int) (BitShares, error) {
	K := k + 2
	n := len(d)
	if n == 0 {
		return ZeroBitShares(0, 1), nil
	}
	rtype := mpcObj.rtype

	r, rbits, err := mpcObj.rand.EdaBits(mpcObj, n, K, true)
	if err != nil {
		return BitShares{}, errors.Wrap(err, "edabits")
	}

	masked := d.Copy()
	masked.MulScalar(rtype.FromInt(2))
	masked.Add(r)

	opened, err := mpcObj.RevealSymVecBits(masked, K)
	if err != nil {
		return BitShares{}, errors.Wrap(err, "masked opening")
	}

	mask := lowMask(K)
	etaLow := make([]uint64, n)
	etaTop := make([]uint64, n)
	for i := range opened {
		eta := (opened[i] + 1) & mask
		etaLow[i] = eta & lowMask(K-1)
		etaTop[i] = eta >> uint(K-1)
	}

	borrow, err := mpcObj.LessThanBitsMasked(etaLow, rbits.Low(K-1))
	if err != nil {
		return BitShares{}, err
	}

	e0 := mpcObj.XorPublic(rbits.Bit(K-1), etaTop)
	return borrow.Xor(e0), nil
}

// LessThanSecret returns width-1 binary shares of [a < b] for shared a, b
// in the signed k-bit range [-2^(k-1), 2^(k-1)). Only a masked difference
// is opened.
func (mpcObj *MPC) LessThanSecret(a, b mpc_core.RVec, k int) (BitShares, error) {
	checkCompareBits(k)
	if len(a) != len(b) {
		panic(fmt.Sprintf("LessThanSecret: length mismatch (%d vs %d)", len(a), len(b)))
	}
	if len(a) == 0 {
		return ZeroBitShares(0, 1), nil
	}

	d := a.Copy()
	d.Sub(b)

	out, err := mpcObj.isNegativeDiff(d, k)
	if err != nil {
		return BitShares{}, errors.Wrap(err, "LessThanSecret")
	}
	log.Lvl2("LessThanSecret: compared", len(a), "values of", k, "bits")
	return out, nil
}

// IsNegative returns width-1 binary shares of [a < 0] for a in the signed
// k-bit range.
func (mpcObj *MPC) IsNegative(a mpc_core.RVec, k int) (BitShares, error) {
	checkCompareBits(k)
	out, err := mpcObj.isNegativeDiff(a, k)
	if err != nil {
		return BitShares{}, errors.Wrap(err, "IsNegative")
	}
	return out, nil
}

// LessThan is LessThanSecret with the result converted to arithmetic
// shares of 0/1.
func (mpcObj *MPC) LessThan(a, b mpc_core.RVec, k int) (mpc_core.RVec, error) {
	lt, err := mpcObj.LessThanSecret(a, b, k)
	if err != nil {
		return nil, err
	}
	return mpcObj.ConvertBitToArith(lt)
}
