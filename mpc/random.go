package mpc

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aead/chacha20/chacha"
	"github.com/hhcho/frand"
	mpc_core "github.com/hhcho/mpc-core"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/crypto/hkdf"
)

// Random holds one PRG per peer (seeded with a key shared with that
// peer), a PRG shared by all parties and a local PRG. Draws go to the
// PRG selected by SwitchPRG until RestorePRG.
type Random struct {
	pid      int
	prgTable map[int]*frand.RNG
	curPRG   *frand.RNG
}

const (
	bufferSize int = 1024
	GlobalPRG  int = -1
)

func sortInt(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

// prgKey derives a chacha key from a seed of any length.
func prgKey(seed []byte) []byte {
	key := make([]byte, chacha.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte("sfcompare prg")), key); err != nil {
		panic(err)
	}
	return key
}

func newPRG(seed []byte) *frand.RNG {
	return frand.NewCustom(prgKey(seed), bufferSize, 20)
}

func InitializePRG(pid int, NumParties int, sharedKeysPath string) (*Random, error) {
	prgTable := make(map[int]*frand.RNG)

	// Globally shared PRG
	seed := make([]byte, chacha.KeySize)
	if sharedKeysPath != "" {
		key, err := os.ReadFile(path.Join(sharedKeysPath, "shared_key_global.bin"))
		if err != nil {
			return nil, errors.Wrap(err, "global key")
		}
		seed = key
	}
	prgTable[GlobalPRG] = newPRG(seed)

	// Pairwise-shared PRG
	for i := 0; i < NumParties; i++ {
		if i == pid {
			continue
		}

		a, b := sortInt(pid, i)
		seed = make([]byte, chacha.KeySize)
		if sharedKeysPath == "" { // Temporary, insecure way of generating a shared seed
			seed[0] = byte(a)
			seed[1] = byte(b)
		} else {
			key, err := os.ReadFile(path.Join(sharedKeysPath, fmt.Sprintf("shared_key_%d_%d.bin", a, b)))
			if err != nil {
				return nil, errors.Wrapf(err, "pairwise key %d-%d", a, b)
			}
			seed = key
		}

		prgTable[i] = newPRG(seed)
	}

	// Local PRG
	seed = make([]byte, chacha.KeySize)
	frand.Read(seed)
	prgTable[pid] = newPRG(seed)

	return &Random{
		prgTable: prgTable,
		curPRG:   prgTable[pid],
		pid:      pid,
	}, nil
}

// InitializeParallelPRG gives every thread's network its own PRG table,
// derived from a master table so that thread t of two parties agree on
// their pairwise streams.
func InitializeParallelPRG(sharedKeysPath string, network []*Network, pid int, nparties int) error {
	if sharedKeysPath == "" {
		log.LLvl1("Warning: shared_keys_path not set in config. Falling back on deterministic keys (not secure).")
	}
	randMaster, err := InitializePRG(pid, nparties, sharedKeysPath)
	if err != nil {
		return err
	}
	for i := range network {
		rand := &Random{
			pid:      pid,
			prgTable: make(map[int]*frand.RNG),
		}
		for j := GlobalPRG; j < nparties; j++ {
			seed := make([]byte, chacha.KeySize)
			randMaster.SwitchPRG(j)
			randMaster.RandRead(seed)
			randMaster.RestorePRG()
			rand.prgTable[j] = newPRG(seed)
		}
		rand.curPRG = rand.prgTable[pid]
		network[i].Rand = rand
	}
	return nil
}

func (rand *Random) SwitchPRG(otherPid int) {
	rand.curPRG = rand.prgTable[otherPid]
}

func (rand *Random) RestorePRG() {
	rand.curPRG = rand.prgTable[rand.pid]
}

func (rand *Random) RandRead(buf []byte) {
	rand.curPRG.Read(buf)
}

func (rand *Random) RandElem(rtype mpc_core.RElem) mpc_core.RElem {
	return rtype.Rand(rand.curPRG)
}

func (rand *Random) RandVec(rtype mpc_core.RElem, n int) mpc_core.RVec {
	out := make(mpc_core.RVec, n)
	for i := range out {
		out[i] = rtype.Rand(rand.curPRG)
	}
	return out
}

func (rand *Random) RandMat(rtype mpc_core.RElem, r int, c int) mpc_core.RMat {
	out := make(mpc_core.RMat, r)
	for i := range out {
		out[i] = rand.RandVec(rtype, c)
	}
	return out
}
