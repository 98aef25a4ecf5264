package mpc

import (
	"fmt"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
)

// CorrelatedRandomness hands out fresh correlated values for one MPC
// environment. Every call returns new values; protocols draw inside each
// invocation and never take correlated values from their caller.
type CorrelatedRandomness interface {
	// DaBits returns n random bits shared both arithmetically and as
	// width-1 binary shares.
	DaBits(mpcObj *MPC, n int) (mpc_core.RVec, BitShares, error)
	// EdaBits returns n random nbits-bit integers shared arithmetically
	// together with their width-nbits binary decomposition. When forceMSB
	// is set, bit nbits-1 of every integer is 1.
	EdaBits(mpcObj *MPC, n, nbits int, forceMSB bool) (mpc_core.RVec, BitShares, error)
}

func sampleEdaBit(v uint64, nbits int, forceMSB bool) uint64 {
	v &= lowMask(nbits)
	if forceMSB {
		v |= uint64(1) << uint(nbits-1)
	}
	return v
}

// DealerRandomness lets party 0 sample the correlated values and split
// them among the computing parties. Parties 1..N-2 derive their shares from
// the PRG shared with party 0; party 0 sends the correction shares to
// party N-1.
type DealerRandomness struct{}

func NewDealerRandomness() *DealerRandomness {
	return &DealerRandomness{}
}

func (d *DealerRandomness) DaBits(mpcObj *MPC, n int) (mpc_core.RVec, BitShares, error) {
	return d.share(mpcObj, n, 1, func(rng *Random) uint64 {
		return rng.RandElem(mpcObj.rtype).Uint64() & 1
	})
}

func (d *DealerRandomness) EdaBits(mpcObj *MPC, n, nbits int, forceMSB bool) (mpc_core.RVec, BitShares, error) {
	checkWidth(nbits)
	return d.share(mpcObj, n, nbits, func(rng *Random) uint64 {
		return sampleEdaBit(rng.RandElem(mpcObj.rtype).Uint64(), nbits, forceMSB)
	})
}

func (d *DealerRandomness) share(mpcObj *MPC, n, nbits int, sample func(*Random) uint64) (mpc_core.RVec, BitShares, error) {
	pid := mpcObj.Network.pid
	rtype := mpcObj.rtype
	rtypeBit := mpc_core.BElem(0)
	last := mpcObj.Network.NumParties - 1

	if pid == 0 {
		r := mpc_core.InitRVec(rtype.Zero(), n)
		rBits := mpc_core.InitRVec(rtypeBit, n)
		for i := 0; i < n; i++ {
			v := sample(mpcObj.Network.Rand)
			r[i] = rtype.FromUint64(v)
			rBits[i] = mpc_core.BElem(v)
		}

		// Secret share r and rBits
		for p := 1; p < last; p++ {
			mpcObj.Network.Rand.SwitchPRG(p)
			mask := mpcObj.Network.Rand.RandVec(rtype, n)
			maskBits := mpcObj.Network.Rand.RandVec(rtypeBit, n)
			mpcObj.Network.Rand.RestorePRG()

			r.Sub(mask)
			rBits.Sub(maskBits)
		}

		if err := mpcObj.Network.SendRData(r, last); err != nil {
			return nil, BitShares{}, errors.Wrap(err, "dealer randomness")
		}
		if err := mpcObj.Network.SendRData(rBits, last); err != nil {
			return nil, BitShares{}, errors.Wrap(err, "dealer randomness")
		}

		return mpc_core.InitRVec(rtype.Zero(), n), ZeroBitShares(n, nbits), nil
	}

	var r, rBits mpc_core.RVec
	if pid == last {
		var err error
		if r, err = mpcObj.Network.ReceiveRVec(rtype, n, 0); err != nil {
			return nil, BitShares{}, errors.Wrap(err, "dealer randomness")
		}
		if rBits, err = mpcObj.Network.ReceiveRVec(rtypeBit, n, 0); err != nil {
			return nil, BitShares{}, errors.Wrap(err, "dealer randomness")
		}
	} else {
		mpcObj.Network.Rand.SwitchPRG(0)
		r = mpcObj.Network.Rand.RandVec(rtype, n)
		rBits = mpcObj.Network.Rand.RandVec(rtypeBit, n)
		mpcObj.Network.Rand.RestorePRG()
	}

	// XOR shares of a value below 2^nbits stay valid after clearing the
	// high bits of every share
	return r, NewBitShares(rBits, nbits), nil
}

// PlainRandomness gives the whole value to the hub and zero to every other
// party. It is only meant for tests and benchmarks: it hides nothing.
// All parties must hold the same source so that they stay aligned.
type PlainRandomness struct {
	next func() uint64
}

// NewSeededRandomness draws values from a PRG keyed by seed.
func NewSeededRandomness(seed []byte) *PlainRandomness {
	rng := newPRG(seed)
	rtype := mpc_core.LElem2N(0)
	return &PlainRandomness{
		next: func() uint64 {
			return rtype.Rand(rng).Uint64()
		},
	}
}

// NewScriptedRandomness hands out draws in order: one draw per dabit
// (its low bit) and one per edabit (its low nbits, MSB forced if asked).
// It panics once the draws run out.
func NewScriptedRandomness(draws []uint64) *PlainRandomness {
	pos := 0
	return &PlainRandomness{
		next: func() uint64 {
			if pos >= len(draws) {
				panic(fmt.Sprintf("scripted randomness exhausted after %d draws", len(draws)))
			}
			v := draws[pos]
			pos++
			return v
		},
	}
}

func (pr *PlainRandomness) DaBits(mpcObj *MPC, n int) (mpc_core.RVec, BitShares, error) {
	return pr.share(mpcObj, n, 1, func() uint64 { return pr.next() & 1 })
}

func (pr *PlainRandomness) EdaBits(mpcObj *MPC, n, nbits int, forceMSB bool) (mpc_core.RVec, BitShares, error) {
	checkWidth(nbits)
	return pr.share(mpcObj, n, nbits, func() uint64 { return sampleEdaBit(pr.next(), nbits, forceMSB) })
}

func (pr *PlainRandomness) share(mpcObj *MPC, n, nbits int, sample func() uint64) (mpc_core.RVec, BitShares, error) {
	rtype := mpcObj.rtype
	r := mpc_core.InitRVec(rtype.Zero(), n)
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = sample()
	}
	if !mpcObj.isHub() {
		return r, ZeroBitShares(n, nbits), nil
	}
	for i := range r {
		r[i] = rtype.FromUint64(vals[i])
	}
	return r, mpcObj.XorPublic(ZeroBitShares(n, nbits), vals), nil
}
