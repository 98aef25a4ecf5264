package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/hhcho/sfcompare/protocol"
	"github.com/raulk/go-watchdog"
	"go.dedis.ch/onet/v3/log"
)

// Expects a party ID provided as an environment variable;
// e.g., run "PID=1 go run sfcompare.go"
var PID, PID_ERR = strconv.Atoi(os.Getenv("PID"))

// Default config path
var CONFIG_PATH = "config/"

func main() {
	if PID_ERR != nil {
		log.Fatal("PID environment variable must be set:", PID_ERR)
	}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		CONFIG_PATH = path
	}

	ok, err := RunCompare(CONFIG_PATH)
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		log.Error("Party", PID, "observed mismatching results")
		os.Exit(1)
	}
}

func InitProtocol(configPath string) (*protocol.ProtocolInfo, error) {
	config, err := protocol.LoadConfig(configPath, PID)
	if err != nil {
		return nil, err
	}

	// Create output directory
	if config.OutDir != "" {
		if err := os.MkdirAll(config.OutDir, 0755); err != nil {
			return nil, err
		}
	}

	// Set max number of threads
	if config.LocalNumThreads > 0 {
		runtime.GOMAXPROCS(config.LocalNumThreads)
	}

	return protocol.InitializeProtocol(config, PID)
}

// RunCompare runs the comparison benchmark for this party and reports
// whether all opened results matched the plaintext.
func RunCompare(configPath string) (bool, error) {
	// Initialize protocol
	prot, err := InitProtocol(configPath)
	if err != nil {
		return false, err
	}

	// Invoke memory manager
	if limit := prot.GetConfig().MemoryLimit; limit > 0 {
		err, stopFn := watchdog.HeapDriven(limit, 40, watchdog.NewAdaptivePolicy(0.5))
		if err != nil {
			return false, err
		}
		defer stopFn()
	}

	// Run protocol
	report, err := prot.Run()
	if err != nil {
		return false, err
	}

	report.Print(os.Stdout)
	prot.GetMpc().GetNetworks().PrintNetworkLog()

	if prot.GetConfig().OutDir != "" {
		filename := prot.OutPath(fmt.Sprintf("report_party%d.txt", PID))
		if err := report.WriteFile(filename); err != nil {
			return false, err
		}
		log.LLvl1("Report written to", filename)
	}

	if err := prot.SyncAndTerminate(true); err != nil {
		return false, err
	}

	return report.OK(), nil
}
