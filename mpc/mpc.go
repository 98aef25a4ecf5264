// Package mpc implements secret-shared comparison protocols among a dealer
// (party 0) and the computing parties 1..N-1.
//
// Arithmetic values are additive shares of mpc_core.LElem2N, binary values
// are XOR shares packed into one mpc_core.BElem word per value (BitShares).
// Every party, the dealer included, runs the same sequence of calls; the
// dealer holds zero shares and only feeds Beaver masks and correlated
// randomness through the pairwise PRGs.
package mpc

import (
	"fmt"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

const (
	// BitLength is the width of the ring and of a packed binary share.
	BitLength = 64
	// MaxCompareBits is the largest operand width accepted by LessThanSecret,
	// IsNegative and ReLU; two guard bits are needed above the operands.
	MaxCompareBits = BitLength - 2
)

type MPC struct {
	rtype   mpc_core.RElem
	Network *Network

	rand      CorrelatedRandomness
	batchSize int

	syncCounter int
}

type ParallelMPC []*MPC // Holds mpc environment for each thread for parallelization
type ParallelNetworks []*Network

// InitParallelMPCEnv creates one environment per thread network. All of
// them draw correlated randomness from the dealer until SetRandomness.
func InitParallelMPCEnv(netObjs []*Network) ParallelMPC {
	mpcEnvParallel := make(ParallelMPC, len(netObjs))
	for i := range netObjs {
		mpcEnvParallel[i] = initMPCEnv(netObjs[i])
	}
	return mpcEnvParallel
}

func initMPCEnv(netObj *Network) *MPC {
	return &MPC{
		Network:     netObj,
		rtype:       mpc_core.LElem2N(0),
		rand:        NewDealerRandomness(),
		syncCounter: 0,
	}
}

// AssertSync checks that all parties reached the same point (counter at
// the hub) and that every pairwise PRG is still aligned.
func (mpcObj *MPC) AssertSync() error {
	pid := mpcObj.GetPid()
	check := mpcObj.syncCounter

	if pid == mpcObj.GetHubPid() {
		for other := 0; other < mpcObj.GetNParty(); other++ {
			if other == pid {
				continue
			}

			otherCount, err := mpcObj.Network.ReceiveInt(other)
			if err != nil {
				return err
			}
			if check != otherCount {
				return errors.Errorf("AssertSync counter check failed between parties %d and %d", pid, other)
			}
		}
	} else {
		if err := mpcObj.Network.SendInt(check, mpcObj.GetHubPid()); err != nil {
			return err
		}
	}

	for other := 0; other < mpcObj.GetNParty(); other++ {
		if other == pid {
			continue
		}

		mpcObj.Network.Rand.SwitchPRG(other)
		rCheck := int(mpcObj.Network.Rand.RandElem(mpcObj.GetRType()).Uint64())
		mpcObj.Network.Rand.RestorePRG()

		var otherCheck int
		var err error

		if pid < other {
			if err = mpcObj.Network.SendInt(rCheck, other); err == nil {
				otherCheck, err = mpcObj.Network.ReceiveInt(other)
			}
		} else {
			if otherCheck, err = mpcObj.Network.ReceiveInt(other); err == nil {
				err = mpcObj.Network.SendInt(rCheck, other)
			}
		}
		if err != nil {
			return err
		}

		if rCheck != otherCheck {
			return errors.Errorf("AssertSync PRG check failed between parties %d and %d: %d != %d", pid, other, rCheck, otherCheck)
		}
	}

	mpcObj.syncCounter++
	log.Lvl2("AssertSync passed for party", pid, "count", check)
	return nil
}

func (mpcObj *MPC) GetPid() int {
	return mpcObj.Network.pid
}

func (mpcObj *MPC) SetHubPid(p int) {
	mpcObj.Network.hubPid = p
}

func (mpcObj *MPC) GetHubPid() int {
	return mpcObj.Network.hubPid
}

func (mpcObj *MPC) GetNParty() int {
	return mpcObj.Network.NumParties
}

func (mpcObj *MPC) GetRType() mpc_core.RElem {
	return mpcObj.rtype
}

// SetRandomness replaces the correlated randomness source of this
// environment. All parties must install sources of the same kind.
func (mpcObj *MPC) SetRandomness(r CorrelatedRandomness) {
	mpcObj.rand = r
}

func (mpcObj *MPC) GetRandomness() CorrelatedRandomness {
	return mpcObj.rand
}

func (mpcObj *MPC) SetBatchSize(n int) {
	mpcObj.batchSize = n
}

func (mpcObj *MPC) GetBatchSize() int {
	return mpcObj.batchSize
}

func (mpcObj *MPC) isHub() bool {
	return mpcObj.Network.pid == mpcObj.Network.hubPid
}

func (mpcObj *MPC) RevealSymVec(a mpc_core.RVec) (mpc_core.RVec, error) {
	pid := mpcObj.Network.pid
	if pid == 0 || len(a) == 0 {
		return a, nil
	}
	ar, err := mpcObj.RevealSymMat(mpc_core.RMat{a})
	if err != nil {
		return nil, err
	}
	return ar[0], nil
}

// RevealSymMat opens a among the computing parties; lower pids send
// first to each higher peer so that no pair blocks on the other.
func (mpcObj *MPC) RevealSymMat(a mpc_core.RMat) (mpc_core.RMat, error) {
	pid := mpcObj.Network.pid
	if pid == 0 {
		return a, nil
	}

	rtype := a.Type()
	nr, nc := a.Dims()

	ar := a.Copy()

	for p := 1; p < mpcObj.Network.NumParties; p++ {
		if p < pid {
			if err := mpcObj.Network.SendRData(a, p); err != nil {
				return nil, errors.Wrap(err, "reveal")
			}
			r, err := mpcObj.Network.ReceiveRMat(rtype, nr, nc, p)
			if err != nil {
				return nil, errors.Wrap(err, "reveal")
			}
			ar.Add(r)
		} else if p > pid {
			r, err := mpcObj.Network.ReceiveRMat(rtype, nr, nc, p)
			if err != nil {
				return nil, errors.Wrap(err, "reveal")
			}
			ar.Add(r)
			if err := mpcObj.Network.SendRData(a, p); err != nil {
				return nil, errors.Wrap(err, "reveal")
			}
		}
	}

	return ar, nil
}

// RevealSymVecBits opens a modulo 2^nbits. Each party reduces its share
// first, so nothing above bit nbits-1 of the sum leaves the party.
func (mpcObj *MPC) RevealSymVecBits(a mpc_core.RVec, nbits int) ([]uint64, error) {
	if nbits < 1 || nbits > BitLength {
		panic(fmt.Sprintf("RevealSymVecBits: nbits %d out of range [1, %d]", nbits, BitLength))
	}
	mask := lowMask(nbits)

	reduced := make(mpc_core.RVec, len(a))
	for i := range a {
		reduced[i] = mpcObj.rtype.FromUint64(a[i].Uint64() & mask)
	}

	opened, err := mpcObj.RevealSymVec(reduced)
	if err != nil {
		return nil, err
	}

	out := make([]uint64, len(opened))
	for i := range opened {
		out[i] = opened[i].Uint64() & mask
	}
	return out, nil
}

// ShareVec secret-shares the plaintext a held by sourcePid among the
// computing parties. Every computing party other than the source derives
// its share from the PRG it shares with the source; the source keeps the
// remainder. Parties other than the source only use len(a).
func (mpcObj *MPC) ShareVec(a mpc_core.RVec, sourcePid int) mpc_core.RVec {
	pid := mpcObj.Network.pid
	n := len(a)
	rtype := mpcObj.rtype

	if pid == 0 {
		return mpc_core.InitRVec(rtype.Zero(), n)
	}

	if pid != sourcePid {
		mpcObj.Network.Rand.SwitchPRG(sourcePid)
		share := mpcObj.Network.Rand.RandVec(rtype, n)
		mpcObj.Network.Rand.RestorePRG()
		return share
	}

	share := a.Copy()
	for p := 1; p < mpcObj.Network.NumParties; p++ {
		if p == pid {
			continue
		}
		mpcObj.Network.Rand.SwitchPRG(p)
		mask := mpcObj.Network.Rand.RandVec(rtype, n)
		mpcObj.Network.Rand.RestorePRG()
		share.Sub(mask)
	}
	return share
}

/* PARALLEL ROUTINES*/
func (mpcObjs ParallelMPC) DisableLogging() {
	for i := range mpcObjs {
		mpcObjs[i].Network.DisableLogging()
	}
}

func (mpcObjs ParallelMPC) EnableLogging() {
	for i := range mpcObjs {
		mpcObjs[i].Network.EnableLogging()
	}
}

// AssertSync runs AssertSync on every thread in order. The check traffic
// is left out of the network log.
func (mpcObjs ParallelMPC) AssertSync() error {
	mpcObjs.DisableLogging()
	defer mpcObjs.EnableLogging()
	for thread := range mpcObjs {
		if err := mpcObjs[thread].AssertSync(); err != nil {
			return errors.Wrapf(err, "thread %d", thread)
		}
	}
	return nil
}

func (mpcObjs ParallelMPC) GetNetworks() ParallelNetworks {
	net := make(ParallelNetworks, len(mpcObjs))
	for i := range net {
		net[i] = mpcObjs[i].Network
	}
	return net
}
