package mpc

import (
	"fmt"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
)

// ConvertBitToArith turns width-1 binary shares into arithmetic shares of
// the same 0/1 values. A fresh dabit (rp, r2) masks x; v = x XOR r2 is
// opened and x = v XOR rp = rp + v - 2*v*rp is recombined locally.
func (mpcObj *MPC) ConvertBitToArith(x BitShares) (mpc_core.RVec, error) {
	if x.Width() != 1 {
		panic(fmt.Sprintf("ConvertBitToArith: expected width-1 shares, got width %d", x.Width()))
	}
	n := x.Len()
	rtype := mpcObj.rtype
	if n == 0 {
		return mpc_core.RVec{}, nil
	}

	rp, r2, err := mpcObj.rand.DaBits(mpcObj, n)
	if err != nil {
		return nil, errors.Wrap(err, "ConvertBitToArith: dabits")
	}

	v, err := mpcObj.RevealBits(x.Xor(r2))
	if err != nil {
		return nil, errors.Wrap(err, "ConvertBitToArith")
	}

	out := mpc_core.InitRVec(rtype.Zero(), n)
	if mpcObj.GetPid() == 0 {
		return out, nil
	}

	hub := mpcObj.isHub()
	for i := range out {
		if v[i] == 0 {
			out[i] = rp[i]
		} else {
			out[i] = rtype.Zero().Sub(rp[i])
			if hub {
				out[i] = out[i].Add(rtype.One())
			}
		}
	}
	return out, nil
}
