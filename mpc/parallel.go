package mpc

import (
	"fmt"
	"time"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/sync/errgroup"
)

type MpcRoutine func(*MPC, mpc_core.RMat) (mpc_core.RVec, error)

func (mpcObjs ParallelMPC) RevealSymVec(a mpc_core.RVec) (mpc_core.RVec, error) {
	return mpcObjs.runParallel(mpc_core.RMat{a}, "RevealSymVec", mpcObjs[0].GetBatchSize(),
		func(mpc *MPC, mat mpc_core.RMat) (mpc_core.RVec, error) {
			return mpc.RevealSymVec(mat[0])
		})
}

func (mpcObjs ParallelMPC) SSMultElemVec(a, b mpc_core.RVec) (mpc_core.RVec, error) {
	return mpcObjs.runParallel(mpc_core.RMat{a, b}, "SSMultElemVec", mpcObjs[0].GetBatchSize(),
		func(mpc *MPC, mat mpc_core.RMat) (mpc_core.RVec, error) {
			return mpc.SSMultElemVec(mat[0], mat[1])
		})
}

// LessThan returns arithmetic shares of [a < b], split over the threads.
func (mpcObjs ParallelMPC) LessThan(a, b mpc_core.RVec, k int) (mpc_core.RVec, error) {
	checkCompareBits(k)
	if len(a) != len(b) {
		panic(fmt.Sprintf("LessThan: length mismatch (%d vs %d)", len(a), len(b)))
	}
	return mpcObjs.runParallel(mpc_core.RMat{a, b}, "LessThan", mpcObjs[0].GetBatchSize(),
		func(mpc *MPC, mat mpc_core.RMat) (mpc_core.RVec, error) {
			return mpc.LessThan(mat[0], mat[1], k)
		})
}

func (mpcObjs ParallelMPC) ReLU(a mpc_core.RVec, k int) (mpc_core.RVec, error) {
	checkCompareBits(k)
	return mpcObjs.runParallel(mpc_core.RMat{a}, "ReLU", mpcObjs[0].GetBatchSize(),
		func(mpc *MPC, mat mpc_core.RMat) (mpc_core.RVec, error) {
			return mpc.ReLU(mat[0], k)
		})
}

// If batchSize > 0 and smaller than len(a[0]), then break up the matrix into chucks to process sequentially (each chunk is parallelized)
func (mpcObjs ParallelMPC) runParallel(a mpc_core.RMat, name string, batchSize int, fn MpcRoutine) (mpc_core.RVec, error) {
	n := len(a[0])

	log.Lvl2(time.Now().Format(time.RFC3339), fmt.Sprintf("runParallel called (%s): initializing n %d batchSize %d", name, n, batchSize))

	res := mpc_core.InitRVec(mpcObjs[0].GetRType().Zero(), n)

	if batchSize > 0 && n > batchSize {

		for startIndex, endIndex := 0, batchSize; startIndex < n; startIndex, endIndex = startIndex+batchSize, endIndex+batchSize {
			if endIndex > n {
				endIndex = n
			}

			log.Lvl2(time.Now().Format(time.RFC3339), fmt.Sprintf("runParallel (%s): working on %d-%d / %d", name, startIndex, endIndex, n))

			aSub := make(mpc_core.RMat, len(a))
			for row := range aSub {
				aSub[row] = a[row][startIndex:endIndex]
			}

			out, err := mpcObjs.runParallel(aSub, name, 0, fn)
			if err != nil {
				return nil, err
			}

			copy(res[startIndex:endIndex], out)
		}

		return res, nil
	}

	numThreads := len(mpcObjs)
	batchFloat := float64(n) / float64(numThreads)

	var g errgroup.Group
	startIndex, endIndex := 0, 0
	for i := 0; i < numThreads; i++ {
		if i == numThreads-1 {
			endIndex = n
		} else {
			endIndex = int(batchFloat * float64(i+1))
		}

		if endIndex > startIndex {
			aSub := make(mpc_core.RMat, len(a))
			for row := range aSub {
				aSub[row] = a[row][startIndex:endIndex]
			}

			threadID, start, end := i, startIndex, endIndex
			g.Go(func() error {
				tmp, err := fn(mpcObjs[threadID], aSub)
				if err != nil {
					return errors.Wrapf(err, "%s (thread %d)", name, threadID)
				}
				copy(res[start:end], tmp)
				return nil
			})
		}

		startIndex = endIndex
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}
