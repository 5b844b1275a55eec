// Package config binds the service's environment and CLI flags into a
// single typed configuration, and loads the rollup config file the
// replay client's GlobalGeneric("rollup-config") preimage is seeded
// from.
package config

import (
	"fmt"
	"os"

	"github.com/succinctlabs/op-succinct-go/rollup"
)

// Config is everything cmd/proposer-server needs to wire up the
// gateway: upstream RPC endpoints, the proving-network credential, and
// where the disk-backed oracle cache and rollup config file live.
type Config struct {
	ListenAddr string

	L1RPC     string
	L2RPC     string
	BeaconRPC string

	ProverURL        string
	ProverPrivateKey string

	RollupConfigPath string
	DataDir          string

	RangeELFPath       string
	AggregationELFPath string
}

// DefaultListenAddr matches the port the external interface fixes: TCP
// 3000 on all interfaces.
const DefaultListenAddr = ":3000"

// Validate checks that every field required to serve a request is
// present. ListenAddr and DataDir fall back to defaults elsewhere, so
// they are not required here.
func (c Config) Validate() error {
	switch {
	case c.L1RPC == "":
		return fmt.Errorf("config: L1 RPC endpoint is required")
	case c.L2RPC == "":
		return fmt.Errorf("config: L2 RPC endpoint is required")
	case c.BeaconRPC == "":
		return fmt.Errorf("config: beacon RPC endpoint is required")
	case c.ProverPrivateKey == "":
		return fmt.Errorf("config: SP1_PRIVATE_KEY is required")
	case c.ProverURL == "":
		return fmt.Errorf("config: prover network URL is required")
	}
	return nil
}

// LoadRollupConfig reads and decodes the rollup configuration file at
// c.RollupConfigPath.
func (c Config) LoadRollupConfig() (rollup.Config, error) {
	data, err := os.ReadFile(c.RollupConfigPath)
	if err != nil {
		return rollup.Config{}, fmt.Errorf("config: read rollup config %s: %w", c.RollupConfigPath, err)
	}
	cfg, err := rollup.ParseConfig(data)
	if err != nil {
		return rollup.Config{}, fmt.Errorf("config: parse rollup config %s: %w", c.RollupConfigPath, err)
	}
	return cfg, nil
}

// LoadELF reads a compiled zkVM guest program image from disk. The
// program's own contents are out of scope here; only its bytes are
// consumed, as an opaque blob handed to the proving network.
func LoadELF(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read elf %s: %w", path, err)
	}
	return data, nil
}
