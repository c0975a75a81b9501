package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

// reading config error is fatal, and exits main thread
func processError(err error) {
	fmt.Println(err)
	os.Exit(2)
}

func readFile(cfg *Configuration) {
	f, err := os.Open("config.yml")
	if err != nil {
		processError(err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(cfg)
	if err != nil {
		processError(err)
	}
}

func readEnv(cfg *Configuration) {
	err := envconfig.Process("", cfg)
	if err != nil {
		processError(err)
	}
}

func Init() {
	readFile(&Config)
	readEnv(&Config)
	applyDefaults(&Config)
}

// defaults keep a bare config.yml workable in local mode
func applyDefaults(cfg *Configuration) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Bridge.HomeChainID == 0 {
		cfg.Bridge.HomeChainID = 777001
	}
	if cfg.Bridge.MaxTransferAmount == "" {
		cfg.Bridge.MaxTransferAmount = "1000000000000000000000000"
	}
	if cfg.Bridge.BridgeFee == "" {
		cfg.Bridge.BridgeFee = "1000000000000000"
	}
	if cfg.Relayer.MinimumStake == "" {
		cfg.Relayer.MinimumStake = "1000000000000000000"
	}
	if cfg.Settlement.DisputeWindowSec == 0 {
		cfg.Settlement.DisputeWindowSec = 3 * 24 * 3600
	}
	if cfg.Settlement.DisputeFee == "" {
		cfg.Settlement.DisputeFee = "100000000000000"
	}
	if cfg.Settlement.MaxAmount == "" {
		cfg.Settlement.MaxAmount = cfg.Bridge.MaxTransferAmount
	}
}
