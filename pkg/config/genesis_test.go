package config

import (
	"os"
	"path/filepath"
	"testing"

	"cardanogo/core"
)

func writeGenesisFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	content := `
stakeholders:
  - id: "0000000000000000000000000000000000000000000000000000000000000001"
    delegate_pk: "64656c"
    weight: 100
boot_slot_leaders:
  - "0000000000000000000000000000000000000000000000000000000000000001"
avvm_utxos:
  - tx_id: "00000000000000000000000000000000000000000000000000000000000000aa"
    index: 2
    address: "00000000000000000000000000000000000000000000000000000000000000bb"
    value: 500
adopted_version:
  major: 1
  minor: 2
  rev: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadGenesisParsesStakeholdersAndUtxos(t *testing.T) {
	path := writeGenesisFixture(t)
	params := core.ChainParameters{ProtocolMagic: 1, EpochSlots: 10}

	cfg, err := LoadGenesis(path, params)
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}

	if cfg.Params != params {
		t.Fatalf("Params not carried through: %+v", cfg.Params)
	}
	if len(cfg.Stakeholders) != 1 {
		t.Fatalf("Stakeholders = %d, want 1", len(cfg.Stakeholders))
	}
	if len(cfg.BootSlotLeaders) != 1 {
		t.Fatalf("BootSlotLeaders = %d, want 1", len(cfg.BootSlotLeaders))
	}
	if len(cfg.AvvmUtxos) != 1 {
		t.Fatalf("AvvmUtxos = %d, want 1", len(cfg.AvvmUtxos))
	}
	if cfg.AdoptedVersion.Major != 1 || cfg.AdoptedVersion.Minor != 2 || cfg.AdoptedVersion.Rev != 3 {
		t.Fatalf("AdoptedVersion = %+v", cfg.AdoptedVersion)
	}

	for ptr, out := range cfg.AvvmUtxos {
		if ptr.Index != 2 {
			t.Fatalf("TxoPointer.Index = %d, want 2", ptr.Index)
		}
		if out.Value != 500 {
			t.Fatalf("TxOut.Value = %d, want 500", out.Value)
		}
	}
}

func TestLoadGenesisRejectsMalformedHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	content := "stakeholders:\n  - id: \"not-hex\"\n    delegate_pk: \"00\"\n    weight: 1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadGenesis(path, core.ChainParameters{}); err == nil {
		t.Fatal("expected error for malformed stakeholder id")
	}
}

func TestLoadGenesisMissingFile(t *testing.T) {
	if _, err := LoadGenesis(filepath.Join(t.TempDir(), "missing.yaml"), core.ChainParameters{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
