package mpc

import (
	"encoding/binary"
	"math/bits"
	"testing"

	"github.com/hhcho/frand"
	mpc_core "github.com/hhcho/mpc-core"
	"github.com/stretchr/testify/require"
)

func randUint64s(n, width int) []uint64 {
	buf := make([]byte, 8*n)
	frand.Read(buf)
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(buf[8*i:]) & lowMask(width)
	}
	return out
}

func words(vals ...uint64) mpc_core.RVec {
	out := make(mpc_core.RVec, len(vals))
	for i := range vals {
		out[i] = mpc_core.BElem(vals[i])
	}
	return out
}

func wordValues(x BitShares) []uint64 {
	w := x.Words()
	out := make([]uint64, len(w))
	for i := range w {
		out[i] = w[i].Uint64()
	}
	return out
}

func TestBitDecomposeLSBFirst(t *testing.T) {
	require.Equal(t, []uint64{0, 1, 1, 0}, BitDecompose(6, 4))
	require.Equal(t, []uint64{1, 0, 1}, BitDecompose(0xfd, 3))

	full := BitDecompose(1<<63, BitLength)
	require.Len(t, full, BitLength)
	require.Equal(t, uint64(1), full[BitLength-1])
}

func TestNewBitSharesClearsHighBits(t *testing.T) {
	x := NewBitShares(words(0xff, 0x13), 4)
	require.Equal(t, 4, x.Width())
	require.Equal(t, 2, x.Len())
	require.Equal(t, []uint64{0xf, 0x3}, wordValues(x))
}

func TestWidthChecks(t *testing.T) {
	require.Panics(t, func() { NewBitShares(words(1), 0) })
	require.Panics(t, func() { ZeroBitShares(1, BitLength+1) })
	require.Panics(t, func() { BitDecompose(1, 65) })

	x := ZeroBitShares(2, 4)
	y := ZeroBitShares(2, 5)
	require.Panics(t, func() { x.Xor(y) })
	require.Panics(t, func() { x.Low(5) })
	require.Panics(t, func() { x.Bit(4) })
}

func TestXorSharesRecombine(t *testing.T) {
	const width = 12
	vals := randUint64s(50, width)

	// two random XOR shares per value
	s1 := randUint64s(len(vals), width)
	s2 := make([]uint64, len(vals))
	for i := range vals {
		s2[i] = s1[i] ^ vals[i]
	}
	x1 := NewBitShares(words(s1...), width)
	x2 := NewBitShares(words(s2...), width)

	require.Equal(t, vals, wordValues(x1.Xor(x2)))

	// local operations commute with recombination
	shifted := x1.ShiftRight(3).Xor(x2.ShiftRight(3))
	parity := x1.Parity().Xor(x2.Parity())
	low := x1.Low(5).Xor(x2.Low(5))
	top := x1.Bit(width - 1).Xor(x2.Bit(width - 1))
	for i := range vals {
		require.Equal(t, vals[i]>>3, wordValues(shifted)[i])
		require.Equal(t, uint64(bits.OnesCount64(vals[i])&1), wordValues(parity)[i])
		require.Equal(t, vals[i]&0x1f, wordValues(low)[i])
		require.Equal(t, vals[i]>>(width-1), wordValues(top)[i])
	}
}

func TestShiftRightPastWidth(t *testing.T) {
	x := NewBitShares(words(0xf, 0x9), 4)
	require.Equal(t, []uint64{0, 0}, wordValues(x.ShiftRight(4)))
	require.Equal(t, []uint64{0x1, 0x1}, wordValues(x.ShiftRight(3)))
}

func TestAndPublic(t *testing.T) {
	x := NewBitShares(words(0xb, 0x6), 4)
	require.Equal(t, []uint64{0x3, 0x4}, wordValues(x.AndPublic([]uint64{0x3, 0xfc})))
}

func TestXorPublicOnlyHub(t *testing.T) {
	x := NewBitShares(words(0x1, 0x2), 4)

	hub := initMPCEnv(newNetwork(1, testParties))
	other := initMPCEnv(newNetwork(2, testParties))

	require.Equal(t, []uint64{0x7, 0xd}, wordValues(hub.XorPublic(x, []uint64{0x6, 0xf})))
	require.Equal(t, []uint64{0x1, 0x2}, wordValues(other.XorPublic(x, []uint64{0x6, 0xf})))
	require.Equal(t, []uint64{0xe, 0xd}, wordValues(hub.NotBits(x)))
}

func TestAndBits(t *testing.T) {
	envs := newTestEnvs(t, 1)
	a := []uint64{0xf0f0, 0xffff, 0x0, 0x1234}
	b := []uint64{0xff00, 0x8001, 0xffff, 0x1234}

	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		mpcObj := env[0]
		c, err := mpcObj.AndBits(mpcObj.ShareBits(a, 16), mpcObj.ShareBits(b, 16))
		if err != nil {
			return nil, err
		}
		return mpcObj.RevealBits(c)
	})
	requireComputingParties(t, out, []uint64{0xf000, 0x8001, 0x0, 0x1234})
}

func TestAndBitsDealtShares(t *testing.T) {
	envs := newTestEnvs(t, 1)
	const n = 20

	// AND of two dealt edabit decompositions, checked against their opening
	out := runParties(t, envs, func(env ParallelMPC) ([]uint64, error) {
		mpcObj := env[0]
		_, x, err := mpcObj.GetRandomness().EdaBits(mpcObj, n, BitLength, false)
		if err != nil {
			return nil, err
		}
		_, y, err := mpcObj.GetRandomness().EdaBits(mpcObj, n, BitLength, false)
		if err != nil {
			return nil, err
		}
		z, err := mpcObj.AndBits(x, y)
		if err != nil {
			return nil, err
		}

		xv, err := mpcObj.RevealBits(x)
		if err != nil {
			return nil, err
		}
		yv, err := mpcObj.RevealBits(y)
		if err != nil {
			return nil, err
		}
		zv, err := mpcObj.RevealBits(z)
		if err != nil {
			return nil, err
		}
		res := make([]uint64, 2*n)
		for i := 0; i < n; i++ {
			res[i] = xv[i] & yv[i]
			res[n+i] = zv[i]
		}
		return res, nil
	})

	for pid := 1; pid < testParties; pid++ {
		require.Equal(t, out[pid][:n], out[pid][n:], "party %d", pid)
	}
}
