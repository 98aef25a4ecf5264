package mpc

import (
	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
)

// Beaver multiplication with dealer-supplied masks. The same routines
// serve arithmetic shares (LElem2N: Add/Mul) and packed binary shares
// (BElem: Add is XOR, Mul is AND), so a bitwise AND of BitShares is a
// Beaver product over BElem words.

// Returns ar, am
func (mpcObj *MPC) BeaverPartitionMat(a mpc_core.RMat) (mpc_core.RMat, mpc_core.RMat, error) {
	pid := mpcObj.Network.pid
	nrows, ncols := a.Dims()
	rtype := a.Type()

	var mask mpc_core.RMat

	if pid == 0 {
		am := mpc_core.InitRMat(rtype.Zero(), nrows, ncols)

		for p := 1; p < mpcObj.Network.NumParties; p++ {
			mpcObj.Network.Rand.SwitchPRG(p)
			mask = mpcObj.Network.Rand.RandMat(rtype, nrows, ncols)
			am.Add(mask)
			mpcObj.Network.Rand.RestorePRG()
		}

		return mpc_core.InitRMat(rtype.Zero(), nrows, ncols), am, nil
	}

	// Retrieve random shares from pid = 0
	mpcObj.Network.Rand.SwitchPRG(0)
	mask = mpcObj.Network.Rand.RandMat(rtype, nrows, ncols)
	mpcObj.Network.Rand.RestorePRG()

	ar := a.Copy()
	ar.Sub(mask)
	ar, err := mpcObj.RevealSymMat(ar)
	if err != nil {
		return nil, nil, errors.Wrap(err, "beaver partition")
	}
	return ar, mask, nil
}

func (mpcObj *MPC) BeaverReconstructVec(a mpc_core.RVec) (mpc_core.RVec, error) {
	out, err := mpcObj.BeaverReconstructMat(mpc_core.RMat{a})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (mpcObj *MPC) BeaverReconstructMat(a mpc_core.RMat) (mpc_core.RMat, error) {
	pid := mpcObj.Network.pid

	rtype := a.Type()
	nr, nc := a.Dims()

	last := mpcObj.Network.NumParties - 1

	if pid == 0 {
		mask := a.Copy()
		for to := 1; to < mpcObj.Network.NumParties-1; to++ {
			mpcObj.Network.Rand.SwitchPRG(to)
			share := mpcObj.Network.Rand.RandMat(rtype, nr, nc)
			mpcObj.Network.Rand.RestorePRG()
			mask.Sub(share)
		}
		if err := mpcObj.Network.SendRData(mask, last); err != nil {
			return nil, errors.Wrap(err, "beaver reconstruct")
		}
		return mpc_core.InitRMat(rtype.Zero(), nr, nc), nil
	}

	var mask mpc_core.RMat
	if pid == last {
		var err error
		mask, err = mpcObj.Network.ReceiveRMat(rtype, nr, nc, 0)
		if err != nil {
			return nil, errors.Wrap(err, "beaver reconstruct")
		}
	} else {
		mpcObj.Network.Rand.SwitchPRG(0)
		mask = mpcObj.Network.Rand.RandMat(rtype, nr, nc)
		mpcObj.Network.Rand.RestorePRG()
	}

	ar := a.Copy()
	ar.Add(mask)

	return ar, nil
}

func (mpcObj *MPC) BeaverMultElemVec(ar, am, br, bm mpc_core.RVec) mpc_core.RVec {
	return mpcObj.BeaverMultElemMat(mpc_core.RMat{ar}, mpc_core.RMat{am}, mpc_core.RMat{br}, mpc_core.RMat{bm})[0]
}

func (mpcObj *MPC) BeaverMultElemMat(ar, am, br, bm mpc_core.RMat) mpc_core.RMat {
	pid := mpcObj.Network.pid
	nr, nc := am.Dims()

	if pid == 0 {
		out := am.Copy()
		out.MulElem(bm)
		return out
	}

	// ensure only one party adds the public term
	hub := mpcObj.isHub()

	out := mpc_core.InitRMat(am.Type().Zero(), nr, nc)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			out[i][j] = out[i][j].Add(ar[i][j].Mul(bm[i][j]))
			out[i][j] = out[i][j].Add(br[i][j].Mul(am[i][j]))
			if hub {
				out[i][j] = out[i][j].Add(ar[i][j].Mul(br[i][j]))
			}
		}
	}
	return out
}

// SSMultElemVec multiplies two shared vectors element-wise. Both operands
// are opened in a single partition round.
func (mpcObj *MPC) SSMultElemVec(a, b mpc_core.RVec) (mpc_core.RVec, error) {
	if len(a) != len(b) {
		panic("SSMultElemVec: length mismatch")
	}
	if len(a) == 0 {
		return mpc_core.RVec{}, nil
	}

	ar, am, err := mpcObj.BeaverPartitionMat(mpc_core.RMat{a, b})
	if err != nil {
		return nil, err
	}
	x := mpcObj.BeaverMultElemVec(ar[0], am[0], ar[1], am[1])
	return mpcObj.BeaverReconstructVec(x)
}
