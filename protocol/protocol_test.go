package protocol

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hhcho/sfcompare/mpc"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("testdata", 1)
	require.NoError(t, err)

	require.Equal(t, 2, config.NumMainParties)
	require.Equal(t, 1, config.HubPartyId)
	require.Equal(t, 8, config.CompareBitWidth)
	require.Equal(t, 32, config.NumValues) // local overrides global
	require.Equal(t, 2, config.MpcNumThreads)
	require.Equal(t, 1, config.NumRepetitions)
	require.Equal(t, RandomnessSeeded, config.Randomness)
	require.Equal(t, "9060", config.Servers["party1"].Ports["party2"])
}

func TestLoadConfigMissingLocal(t *testing.T) {
	_, err := LoadConfig("testdata", 2)
	require.Error(t, err)
}

func writeConfig(t *testing.T, global string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configGlobal.toml"), []byte(global), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configLocal.Party1.toml"), []byte("mpc_num_threads = 1\n"), 0644))
	return dir
}

func TestLoadConfigHubParty(t *testing.T) {
	const base = "num_main_parties = 2\ncompare_bit_width = 8\n"

	_, err := LoadConfig(writeConfig(t, base+"hub_party_id = 0\n"), 1)
	require.ErrorContains(t, err, "hub_party_id 0")

	config, err := LoadConfig(writeConfig(t, base+"hub_party_id = 2\n"), 1)
	require.NoError(t, err)
	require.Equal(t, 2, config.HubPartyId)

	config, err = LoadConfig(writeConfig(t, base), 1)
	require.NoError(t, err)
	require.Equal(t, 1, config.HubPartyId)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			NumMainParties:  2,
			HubPartyId:      1,
			CompareBitWidth: 8,
			MpcNumThreads:   1,
			Randomness:      RandomnessDealer,
		}
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"no parties":   func(c *Config) { c.NumMainParties = 0 },
		"dealer hub":   func(c *Config) { c.HubPartyId = 0 },
		"hub too high": func(c *Config) { c.HubPartyId = 3 },
		"zero width":   func(c *Config) { c.CompareBitWidth = 0 },
		"wide":         func(c *Config) { c.CompareBitWidth = mpc.MaxCompareBits + 1 },
		"no threads":   func(c *Config) { c.MpcNumThreads = 0 },
		"randomness":   func(c *Config) { c.Randomness = "trusted" },
	} {
		c := valid()
		mutate(c)
		require.Error(t, c.Validate(), name)
	}
}

func runLocal(t *testing.T, config *Config) []*Report {
	t.Helper()
	nparties := config.NumMainParties + 1
	nets, err := mpc.InitLocalCommunication(nparties, config.MpcNumThreads)
	require.NoError(t, err)
	t.Cleanup(func() {
		for pid := range nets {
			mpc.ParallelNetworks(nets[pid]).CloseAll()
		}
	})

	reports := make([]*Report, nparties)
	errs := make([]error, nparties)
	var wg sync.WaitGroup
	for pid := 0; pid < nparties; pid++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			prot := NewProtocolInfo(config, nets[pid])
			reports[pid], errs[pid] = prot.Run()
			if errs[pid] == nil {
				errs[pid] = prot.SyncAndTerminate(false)
			}
		}(pid)
	}
	wg.Wait()

	for pid, err := range errs {
		require.NoError(t, err, "party %d", pid)
	}
	return reports
}

func TestRunDealer(t *testing.T) {
	config := &Config{
		NumMainParties:  2,
		HubPartyId:      1,
		CompareBitWidth: 12,
		NumValues:       40,
		NumRepetitions:  2,
		Randomness:      RandomnessDealer,
		MpcNumThreads:   2,
		MpcBatchSize:    16,
	}
	require.NoError(t, config.Validate())

	reports := runLocal(t, config)
	for pid := 1; pid < len(reports); pid++ {
		r := reports[pid]
		require.True(t, r.OK(), "party %d", pid)
		require.Len(t, r.Durations(PhaseLessThan), 2)
		require.Len(t, r.Durations(PhaseReLU), 2)
		require.NotZero(t, r.BytesSent)
	}
}

func TestRunSeededThreeComputingParties(t *testing.T) {
	config := &Config{
		NumMainParties:  3,
		HubPartyId:      2,
		CompareBitWidth: 20,
		NumValues:       25,
		NumRepetitions:  1,
		Randomness:      RandomnessSeeded,
		RandomnessSeed:  "seed",
		MpcNumThreads:   1,
	}
	require.NoError(t, config.Validate())

	reports := runLocal(t, config)
	for pid := 1; pid < len(reports); pid++ {
		require.True(t, reports[pid].OK(), "party %d", pid)
	}
}

func TestGenerateOperandsAgree(t *testing.T) {
	config := &Config{NumMainParties: 2, HubPartyId: 1, CompareBitWidth: 10, MpcNumThreads: 1, Randomness: RandomnessDealer}
	nets, err := mpc.InitLocalCommunication(3, 1)
	require.NoError(t, err)
	defer func() {
		for pid := range nets {
			mpc.ParallelNetworks(nets[pid]).CloseAll()
		}
	}()

	a0, b0 := NewProtocolInfo(config, nets[0]).GenerateOperands(100, 10)
	a2, b2 := NewProtocolInfo(config, nets[2]).GenerateOperands(100, 10)
	require.Equal(t, a0, a2)
	require.Equal(t, b0, b2)
	for i := range a0 {
		require.GreaterOrEqual(t, a0[i], int64(-512))
		require.Less(t, a0[i], int64(512))
	}
}

func TestReportPrint(t *testing.T) {
	r := NewReport(1, 10, 8)
	r.AddDuration(PhaseLessThan, 1500)
	r.AddDuration(PhaseLessThan, 2500)
	r.AddDuration(PhaseReLU, 3000)
	r.BytesSent = 1234

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()
	require.Contains(t, out, "Party 1: 10 values, 8-bit operands")
	require.Contains(t, out, PhaseLessThan)
	require.Contains(t, out, "1234 B")
	require.NotContains(t, out, PhaseReveal)
	require.True(t, r.OK())

	filename := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, r.WriteFile(filename))
}
