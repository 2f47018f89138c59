package config

// genesis.go loads the stakeholder/AVVM-UTxO/boot-leader schedule a
// ChainState is seeded from. The shape is a handful of maps keyed by
// hex-encoded hashes, which does not fit viper's mapstructure decoding
// the way the rest of Config does, so this file parses the file
// directly with gopkg.in/yaml.v3 instead of going through Load.

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cardanogo/core"
)

// GenesisStakeholder is one entry of the genesis stake distribution.
type GenesisStakeholder struct {
	ID         string `yaml:"id"`
	DelegatePK string `yaml:"delegate_pk"`
	Weight     uint64 `yaml:"weight"`
}

// GenesisUtxo is one AVVM redemption output present at epoch 0.
type GenesisUtxo struct {
	TxID    string `yaml:"tx_id"`
	Index   uint32 `yaml:"index"`
	Address string `yaml:"address"`
	Value   uint64 `yaml:"value"`
}

// GenesisFile is the on-disk shape of a genesis.yaml.
type GenesisFile struct {
	Stakeholders    []GenesisStakeholder `yaml:"stakeholders"`
	BootSlotLeaders []string             `yaml:"boot_slot_leaders"`
	AvvmUtxos       []GenesisUtxo        `yaml:"avvm_utxos"`
	AdoptedVersion  struct {
		Major uint16 `yaml:"major"`
		Minor uint16 `yaml:"minor"`
		Rev   uint16 `yaml:"rev"`
	} `yaml:"adopted_version"`
}

func parseHash(hexStr string) (core.Hash, error) {
	var h core.Hash
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", hexStr, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("hash %q: want %d bytes, got %d", hexStr, len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// LoadGenesis reads path and converts it into a core.GenesisConfig
// seeded with params, ready to pass to core.NewChainStateFromGenesis.
func LoadGenesis(path string, params core.ChainParameters) (core.GenesisConfig, error) {
	var cfg core.GenesisConfig

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read genesis file: %w", err)
	}

	var gf GenesisFile
	if err := yaml.Unmarshal(raw, &gf); err != nil {
		return cfg, fmt.Errorf("parse genesis file: %w", err)
	}

	stakeholders := make(map[core.StakeholderId]core.StakeInfo, len(gf.Stakeholders))
	for _, s := range gf.Stakeholders {
		id, err := parseHash(s.ID)
		if err != nil {
			return cfg, fmt.Errorf("stakeholder: %w", err)
		}
		pk, err := hex.DecodeString(s.DelegatePK)
		if err != nil {
			return cfg, fmt.Errorf("stakeholder %s: invalid delegate_pk: %w", s.ID, err)
		}
		stakeholders[core.StakeholderId(id)] = core.StakeInfo{DelegatePK: pk, Weight: s.Weight}
	}

	bootLeaders := make([]core.StakeholderId, 0, len(gf.BootSlotLeaders))
	for _, idHex := range gf.BootSlotLeaders {
		id, err := parseHash(idHex)
		if err != nil {
			return cfg, fmt.Errorf("boot_slot_leaders: %w", err)
		}
		bootLeaders = append(bootLeaders, core.StakeholderId(id))
	}

	utxos := make(map[core.TxoPointer]core.TxOut, len(gf.AvvmUtxos))
	for _, u := range gf.AvvmUtxos {
		txID, err := parseHash(u.TxID)
		if err != nil {
			return cfg, fmt.Errorf("avvm_utxos: %w", err)
		}
		addrRoot, err := parseHash(u.Address)
		if err != nil {
			return cfg, fmt.Errorf("avvm_utxos: %w", err)
		}
		utxos[core.TxoPointer{TxID: txID, Index: u.Index}] = core.TxOut{
			Address: core.Address{Root: addrRoot},
			Value:   u.Value,
		}
	}

	cfg = core.GenesisConfig{
		Params:          params,
		Stakeholders:    stakeholders,
		BootSlotLeaders: bootLeaders,
		AvvmUtxos:       utxos,
		AdoptedVersion: core.BlockVersion{
			Major: gf.AdoptedVersion.Major,
			Minor: gf.AdoptedVersion.Minor,
			Rev:   gf.AdoptedVersion.Rev,
		},
	}
	return cfg, nil
}
