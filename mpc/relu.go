package mpc

import (
	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
)

// ReLU returns shares of max(a, 0) for a in the signed k-bit range. Zero
// counts as non-negative.
func (mpcObj *MPC) ReLU(a mpc_core.RVec, k int) (mpc_core.RVec, error) {
	checkCompareBits(k)
	if len(a) == 0 {
		return mpc_core.RVec{}, nil
	}

	neg, err := mpcObj.IsNegative(a, k)
	if err != nil {
		return nil, errors.Wrap(err, "ReLU")
	}

	nonNeg, err := mpcObj.ConvertBitToArith(mpcObj.NotBits(neg))
	if err != nil {
		return nil, errors.Wrap(err, "ReLU")
	}

	out, err := mpcObj.SSMultElemVec(nonNeg, a)
	if err != nil {
		return nil, errors.Wrap(err, "ReLU: multiply")
	}
	return out, nil
}
