package protocol

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/hhcho/sfcompare/mpc"
	"github.com/pkg/errors"
)

const (
	RandomnessDealer = "dealer"
	RandomnessSeeded = "seeded"
)

type Config struct {
	NumMainParties int `toml:"num_main_parties"`
	HubPartyId     int `toml:"hub_party_id"`

	CompareBitWidth int    `toml:"compare_bit_width"`
	NumValues       int    `toml:"num_values"`
	NumRepetitions  int    `toml:"num_repetitions"`
	Randomness      string `toml:"randomness"` // 'dealer' or 'seeded'
	RandomnessSeed  string `toml:"randomness_seed"`

	BindingIP string `toml:"binding_ipaddr"`
	Servers   map[string]mpc.Server

	SharedKeysPath string `toml:"shared_keys_path"`

	OutDir string `toml:"output_dir"`

	MpcNumThreads   int    `toml:"mpc_num_threads"`
	MpcBatchSize    int    `toml:"mpc_batch_size"`
	LocalNumThreads int    `toml:"local_num_threads"`
	MemoryLimit     uint64 `toml:"memory_limit"`
}

// LoadConfig reads configGlobal.toml and then configLocal.Party<pid>.toml
// from configPath; local values override global ones.
func LoadConfig(configPath string, pid int) (*Config, error) {
	config := new(Config)

	// Import global parameters
	globalFile := filepath.Join(configPath, "configGlobal.toml")
	globalMeta, err := toml.DecodeFile(globalFile, config)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", globalFile)
	}

	// Import local parameters
	localFile := filepath.Join(configPath, fmt.Sprintf("configLocal.Party%d.toml", pid))
	localMeta, err := toml.DecodeFile(localFile, config)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", localFile)
	}

	// Only an absent hub_party_id defaults to 1
	if !globalMeta.IsDefined("hub_party_id") && !localMeta.IsDefined("hub_party_id") {
		config.HubPartyId = 1
	}
	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (config *Config) setDefaults() {
	if config.MpcNumThreads == 0 {
		config.MpcNumThreads = 1
	}
	if config.NumRepetitions == 0 {
		config.NumRepetitions = 1
	}
	if config.Randomness == "" {
		config.Randomness = RandomnessDealer
	}
}

func (config *Config) Validate() error {
	if config.NumMainParties < 1 {
		return errors.Errorf("num_main_parties must be at least 1, got %d", config.NumMainParties)
	}
	if config.HubPartyId < 1 || config.HubPartyId > config.NumMainParties {
		return errors.Errorf("hub_party_id %d is not a computing party (1..%d)", config.HubPartyId, config.NumMainParties)
	}
	if config.CompareBitWidth < 1 || config.CompareBitWidth > mpc.MaxCompareBits {
		return errors.Errorf("compare_bit_width %d out of range [1, %d]", config.CompareBitWidth, mpc.MaxCompareBits)
	}
	if config.NumValues < 0 {
		return errors.Errorf("num_values must not be negative, got %d", config.NumValues)
	}
	if config.MpcNumThreads < 1 {
		return errors.Errorf("mpc_num_threads must be positive, got %d", config.MpcNumThreads)
	}
	switch config.Randomness {
	case RandomnessDealer, RandomnessSeeded:
	default:
		return errors.Errorf("unsupported randomness %q (want %q or %q)", config.Randomness, RandomnessDealer, RandomnessSeeded)
	}
	return nil
}
