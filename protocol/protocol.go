package protocol

import (
	"fmt"
	"path/filepath"
	"time"

	mpc_core "github.com/hhcho/mpc-core"
	"github.com/hhcho/sfcompare/mpc"
	libunlynx "github.com/ldsec/unlynx/lib"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

type ProtocolInfo struct {
	mpcObj mpc.ParallelMPC

	config *Config
}

func (prot *ProtocolInfo) GetMpc() mpc.ParallelMPC {
	return prot.mpcObj
}

func (prot *ProtocolInfo) GetConfig() *Config {
	return prot.config
}

func (prot *ProtocolInfo) OutPath(filename string) string {
	return filepath.Join(prot.config.OutDir, filename)
}

// InitializeProtocol connects to the other parties listed in config and
// sets up one MPC environment per thread.
func InitializeProtocol(config *Config, pid int) (*ProtocolInfo, error) {
	networks, err := mpc.InitCommunication(config.BindingIP, config.Servers, pid, config.NumMainParties+1, config.MpcNumThreads, config.SharedKeysPath)
	if err != nil {
		return nil, errors.Wrap(err, "init communication")
	}
	return NewProtocolInfo(config, networks), nil
}

// NewProtocolInfo builds the protocol over already connected networks,
// one per thread.
func NewProtocolInfo(config *Config, networks []*mpc.Network) *ProtocolInfo {
	log.LLvl1(fmt.Sprintf("MPC parameters: bit width %d, %d values, %d threads, batch size %d, %s randomness",
		config.CompareBitWidth, config.NumValues, len(networks), config.MpcBatchSize, config.Randomness))

	mpcEnv := mpc.InitParallelMPCEnv(networks)
	for thread := range mpcEnv {
		mpcEnv[thread].SetHubPid(config.HubPartyId)
		mpcEnv[thread].SetBatchSize(config.MpcBatchSize)
		if config.Randomness == RandomnessSeeded {
			seed := fmt.Sprintf("%s/%d", config.RandomnessSeed, thread)
			mpcEnv[thread].SetRandomness(mpc.NewSeededRandomness([]byte(seed)))
		}
	}

	return &ProtocolInfo{
		mpcObj: mpcEnv, // One MPC object for each thread
		config: config,
	}
}

// GenerateOperands draws n pairs of signed k-bit test operands from the
// PRG shared by all parties, so every party knows the plaintext.
func (prot *ProtocolInfo) GenerateOperands(n, k int) (a, b []int64) {
	mainMPCObj := prot.mpcObj[0]
	rng := mainMPCObj.Network.Rand

	rng.SwitchPRG(mpc.GlobalPRG)
	raw := rng.RandVec(mainMPCObj.GetRType(), 2*n)
	rng.RestorePRG()

	shift := uint(64 - k)
	a = make([]int64, n)
	b = make([]int64, n)
	for i := 0; i < n; i++ {
		a[i] = int64(raw[i].Uint64()<<shift) >> shift
		b[i] = int64(raw[n+i].Uint64()<<shift) >> shift
	}
	return a, b
}

func toRVec(rtype mpc_core.RElem, vals []int64) mpc_core.RVec {
	out := make(mpc_core.RVec, len(vals))
	for i := range vals {
		out[i] = rtype.FromUint64(uint64(vals[i]))
	}
	return out
}

// Run secret-shares the generated operands from the hub, evaluates
// LessThan and ReLU on them NumRepetitions times, opens the results and
// checks them against the plaintext.
func (prot *ProtocolInfo) Run() (*Report, error) {
	config := prot.config
	mpcObjs := prot.mpcObj
	mainMPCObj := mpcObjs[0]
	pid := mainMPCObj.GetPid()
	k := config.CompareBitWidth
	n := config.NumValues
	rtype := mainMPCObj.GetRType()

	report := NewReport(pid, n, k)

	a, b := prot.GenerateOperands(n, k)
	as := mainMPCObj.ShareVec(toRVec(rtype, a), config.HubPartyId)
	bs := mainMPCObj.ShareVec(toRVec(rtype, b), config.HubPartyId)

	mpcObjs.GetNetworks().ResetNetworkLog()

	for rep := 0; rep < config.NumRepetitions; rep++ {
		log.LLvl1(time.Now().Format(time.RFC3339), fmt.Sprintf("Repetition %d/%d", rep+1, config.NumRepetitions))

		timer := libunlynx.StartTimer(fmt.Sprintf("Party%d_LessThan", pid))
		start := time.Now()
		lt, err := mpcObjs.LessThan(as, bs, k)
		if err != nil {
			return nil, errors.Wrap(err, "LessThan")
		}
		report.AddDuration(PhaseLessThan, time.Since(start))
		libunlynx.EndTimer(timer)

		timer = libunlynx.StartTimer(fmt.Sprintf("Party%d_ReLU", pid))
		start = time.Now()
		relu, err := mpcObjs.ReLU(as, k)
		if err != nil {
			return nil, errors.Wrap(err, "ReLU")
		}
		report.AddDuration(PhaseReLU, time.Since(start))
		libunlynx.EndTimer(timer)

		start = time.Now()
		ltOpen, err := mpcObjs.RevealSymVec(lt)
		if err != nil {
			return nil, errors.Wrap(err, "reveal LessThan")
		}
		reluOpen, err := mpcObjs.RevealSymVec(relu)
		if err != nil {
			return nil, errors.Wrap(err, "reveal ReLU")
		}
		report.AddDuration(PhaseReveal, time.Since(start))

		if err := mpcObjs.AssertSync(); err != nil {
			return nil, errors.Wrapf(err, "repetition %d", rep+1)
		}

		if pid == 0 {
			continue
		}

		var ltMiss, reluMiss uint64
		for i := 0; i < n; i++ {
			var want uint64
			if a[i] < b[i] {
				want = 1
			}
			if ltOpen[i].Uint64() != want {
				ltMiss++
			}

			var wantReLU int64
			if a[i] > 0 {
				wantReLU = a[i]
			}
			if reluOpen[i].Uint64() != uint64(wantReLU) {
				reluMiss++
			}
		}
		report.LessThanMismatches += ltMiss
		report.ReLUMismatches += reluMiss
	}

	report.BytesSent, report.BytesReceived = mpcObjs.GetNetworks().TotalBytes()

	// All computing parties opened the same values; the sum exposes any
	// party that disagrees
	total, err := mainMPCObj.Network.AggregateIntVec([]uint64{report.LessThanMismatches, report.ReLUMismatches})
	if err != nil {
		return nil, errors.Wrap(err, "aggregate mismatch counts")
	}
	if total != nil {
		report.TotalMismatches = total[0] + total[1]
	}

	return report, nil
}

// SyncAndTerminate waits until every party reached this point and
// optionally closes all channels.
func (prot *ProtocolInfo) SyncAndTerminate(closeChannelFlag bool) error {
	mainMPCObj := prot.mpcObj[0]
	pid := mainMPCObj.GetPid()

	var dummy mpc_core.RElem = mainMPCObj.GetRType().Zero()
	var err error
	if pid == 0 {
		for p := 1; p < mainMPCObj.GetNParty(); p++ {
			if dummy, err = mainMPCObj.Network.ReceiveRElem(dummy, p); err != nil {
				return errors.Wrap(err, "sync")
			}
			if err = mainMPCObj.Network.SendRData(dummy, p); err != nil {
				return errors.Wrap(err, "sync")
			}
		}
	} else {
		if err = mainMPCObj.Network.SendRData(dummy, 0); err != nil {
			return errors.Wrap(err, "sync")
		}
		if _, err = mainMPCObj.Network.ReceiveRElem(dummy, 0); err != nil {
			return errors.Wrap(err, "sync")
		}
	}

	if closeChannelFlag {
		// Close all threads
		prot.mpcObj.GetNetworks().CloseAll()
	}
	return nil
}
