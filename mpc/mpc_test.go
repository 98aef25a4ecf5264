package mpc

import (
	"sync"
	"testing"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// dealer plus two computing parties
const testParties = 3

func newTestEnvs(t *testing.T, numThreads int) []ParallelMPC {
	t.Helper()
	return newTestEnvsN(t, testParties, numThreads)
}

func newTestEnvsN(t *testing.T, nparties, numThreads int) []ParallelMPC {
	t.Helper()
	nets, err := InitLocalCommunication(nparties, numThreads)
	require.NoError(t, err)
	t.Cleanup(func() {
		for pid := range nets {
			ParallelNetworks(nets[pid]).CloseAll()
		}
	})

	envs := make([]ParallelMPC, nparties)
	for pid := range nets {
		envs[pid] = InitParallelMPCEnv(nets[pid])
	}
	return envs
}

// runParties runs fn for every party in its own goroutine and returns the
// per-party results once all of them are done.
func runParties(t *testing.T, envs []ParallelMPC, fn func(env ParallelMPC) ([]uint64, error)) [][]uint64 {
	t.Helper()
	out := make([][]uint64, len(envs))
	errs := make([]error, len(envs))

	var wg sync.WaitGroup
	for pid := range envs {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			out[pid], errs[pid] = fn(envs[pid])
		}(pid)
	}
	wg.Wait()

	for pid, err := range errs {
		require.NoError(t, err, "party %d", pid)
	}
	return out
}

// requireComputingParties checks that every computing party obtained the
// expected public values. Party 0 only sees its own zero shares.
func requireComputingParties(t *testing.T, out [][]uint64, expected []uint64) {
	t.Helper()
	for pid := 1; pid < len(out); pid++ {
		require.Equal(t, expected, out[pid], "party %d", pid)
	}
}

func toRVec(vals []int64) mpc_core.RVec {
	out := make(mpc_core.RVec, len(vals))
	for i := range vals {
		out[i] = mpc_core.LElem2N(uint64(vals[i]))
	}
	return out
}

func revealArith(mpcObj *MPC, a mpc_core.RVec) ([]uint64, error) {
	opened, err := mpcObj.RevealSymVec(a)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(opened))
	for i := range opened {
		out[i] = opened[i].Uint64()
	}
	return out, nil
}

func boolsToUint(b []bool) []uint64 {
	out := make([]uint64, len(b))
	for i := range b {
		if b[i] {
			out[i] = 1
		}
	}
	return out
}

func signedToUint(v []int64) []uint64 {
	out := make([]uint64, len(v))
	for i := range v {
		out[i] = uint64(v[i])
	}
	return out
}

func TestShareVecReconstructs(t *testing.T) {
	envs := newTestEnvs(t, 1)
	vals := []int64{0, 1, -1, 42, -1 << 40}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		mpcObj := env[0]
		a := mpcObj.ShareVec(toRVec(vals), mpcObj.GetHubPid())
		return revealArith(mpcObj, a)
	})
	requireComputingParties(t, out, signedToUint(vals))
}

func TestShareVecFromSecondParty(t *testing.T) {
	envs := newTestEnvs(t, 1)
	vals := []int64{7, -7, 1 << 62}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		mpcObj := env[0]
		input := make([]int64, len(vals))
		if mpcObj.GetPid() == 2 {
			copy(input, vals)
		}
		a := mpcObj.ShareVec(toRVec(input), 2)
		return revealArith(mpcObj, a)
	})
	requireComputingParties(t, out, signedToUint(vals))
}

func TestSSMultElemVec(t *testing.T) {
	envs := newTestEnvs(t, 1)
	a := []int64{3, -2, 0, 1 << 20}
	b := []int64{5, 7, 9, 1 << 20}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		mpcObj := env[0]
		as := mpcObj.ShareVec(toRVec(a), mpcObj.GetHubPid())
		bs := mpcObj.ShareVec(toRVec(b), mpcObj.GetHubPid())
		c, err := mpcObj.SSMultElemVec(as, bs)
		if err != nil {
			return nil, err
		}
		return revealArith(mpcObj, c)
	})
	requireComputingParties(t, out, signedToUint([]int64{15, -14, 0, 1 << 40}))
}

func TestRevealSymVecBits(t *testing.T) {
	envs := newTestEnvs(t, 1)
	vals := []int64{-1, 0x1234, 1 << 10}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		mpcObj := env[0]
		a := mpcObj.ShareVec(toRVec(vals), mpcObj.GetHubPid())
		return mpcObj.RevealSymVecBits(a, 10)
	})
	requireComputingParties(t, out, []uint64{0x3ff, 0x234, 0})
}

func TestAssertSync(t *testing.T) {
	envs := newTestEnvs(t, 1)
	runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		for i := 0; i < 3; i++ {
			if err := env[0].AssertSync(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

func TestAssertSyncDetectsPRGDrift(t *testing.T) {
	envs := newTestEnvs(t, 1)

	errs := make([]error, testParties)
	var wg sync.WaitGroup
	for pid := range envs {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			mpcObj := envs[pid][0]
			if pid == 1 {
				// one extra draw on the stream shared with party 2
				mpcObj.Network.Rand.SwitchPRG(2)
				mpcObj.Network.Rand.RandElem(mpcObj.GetRType())
				mpcObj.Network.Rand.RestorePRG()
			}
			errs[pid] = mpcObj.AssertSync()
		}(pid)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.ErrorContains(t, errs[1], "PRG check failed between parties 1 and 2")
	require.ErrorContains(t, errs[2], "PRG check failed between parties 2 and 1")
}

func TestParallelAssertSyncNotLogged(t *testing.T) {
	envs := newTestEnvs(t, 2)
	runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		env.GetNetworks().ResetNetworkLog()
		if err := env.AssertSync(); err != nil {
			return nil, err
		}
		sent, received := env.GetNetworks().TotalBytes()
		if sent != 0 || received != 0 {
			return nil, errors.Errorf("sync traffic logged: %d sent, %d received", sent, received)
		}
		return nil, nil
	})
}
