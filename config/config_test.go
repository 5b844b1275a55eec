package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRequiresEveryField(t *testing.T) {
	complete := Config{
		L1RPC: "http://l1", L2RPC: "http://l2", BeaconRPC: "http://beacon",
		ProverPrivateKey: "key", ProverURL: "http://prover",
	}
	if err := complete.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	missing := complete
	missing.ProverPrivateKey = ""
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error for missing private key")
	}
}

func TestLoadRollupConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollup.json")
	body := `{"block_time":2,"l1_chain_id":1,"l2_chain_id":10,"batch_inbox_address":"0xff0000000000000000000000000000000000000a"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c := Config{RollupConfigPath: path}
	cfg, err := c.LoadRollupConfig()
	if err != nil {
		t.Fatalf("LoadRollupConfig: %v", err)
	}
	if cfg.BlockTime != 2 || cfg.L2ChainID != 10 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRollupConfigMissingFile(t *testing.T) {
	c := Config{RollupConfigPath: filepath.Join(t.TempDir(), "missing.json")}
	if _, err := c.LoadRollupConfig(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadELF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "range.elf")
	if err := os.WriteFile(path, []byte{0x7f, 'E', 'L', 'F'}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	data, err := LoadELF(path)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("got %d bytes, want 4", len(data))
	}
}
