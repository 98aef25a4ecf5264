package mpc

import (
	"testing"
)

func reluAndReveal(mpcObj *MPC, a []int64, k int) ([]uint64, error) {
	res, err := mpcObj.ReLU(mpcObj.ShareVec(toRVec(a), mpcObj.GetHubPid()), k)
	if err != nil {
		return nil, err
	}
	return revealArith(mpcObj, res)
}

func expectedReLU(a []int64) []uint64 {
	out := make([]int64, len(a))
	for i := range a {
		if a[i] > 0 {
			out[i] = a[i]
		}
	}
	return signedToUint(out)
}

func TestReLUConcrete(t *testing.T) {
	envs := newTestEnvs(t, 1)
	a := []int64{-4, 7, 0, -128, 127, -1, 1}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		return reluAndReveal(env[0], a, 8)
	})
	requireComputingParties(t, out, []uint64{0, 7, 0, 0, 127, 0, 1})
}

func TestReLUFullRange(t *testing.T) {
	envs := newTestEnvs(t, 1)
	const k = 6

	var a []int64
	for x := int64(-32); x < 32; x++ {
		a = append(a, x)
	}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		return reluAndReveal(env[0], a, k)
	})
	requireComputingParties(t, out, expectedReLU(a))
}

func TestReLUScriptedDraws(t *testing.T) {
	envs := newTestEnvs(t, 1)
	const k = 8
	const K = k + 2
	a := []int64{-4, 7, 0}

	// three edabits followed by three dabits
	draws := []uint64{1 << (K - 1), 1<<K - 1, 0, 1, 0, 1}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		env[0].SetRandomness(NewScriptedRandomness(draws))
		return reluAndReveal(env[0], a, k)
	})
	requireComputingParties(t, out, []uint64{0, 7, 0})
}

func TestReLUSeeded(t *testing.T) {
	envs := newTestEnvs(t, 1)
	const k = 32
	a := []int64{-1 << 31, 1<<31 - 1, -5, 5, 0}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		env[0].SetRandomness(NewSeededRandomness([]byte("relu")))
		return reluAndReveal(env[0], a, k)
	})
	requireComputingParties(t, out, expectedReLU(a))
}
