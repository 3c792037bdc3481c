package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is bootstrap data applied at startup: the one-time registry
// initialization, per-asset fees, relayers and, for the in-memory ledger,
// opening balances. Every section is optional.
type Seed struct {
	Registry  *SeedRegistry  `yaml:"registry"`
	AssetFees []SeedAssetFee `yaml:"asset_fees"`
	Relayers  []string       `yaml:"relayers"`
	Balances  []SeedBalance  `yaml:"balances"`
}

// SeedRegistry initializes the registry when it is not yet initialized.
type SeedRegistry struct {
	Admin                     string `yaml:"admin"`
	Treasury                  string `yaml:"treasury"`
	RegistrationFee           string `yaml:"registration_fee"`
	ReferrerBps               uint16 `yaml:"referrer_bps"`
	RequireAllowlistedRelayer bool   `yaml:"require_allowlisted_relayer"`
	NativeAsset               string `yaml:"native_asset"`
}

type SeedAssetFee struct {
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
	Enabled bool   `yaml:"enabled"`
}

type SeedBalance struct {
	Identity string `yaml:"identity"`
	Asset    string `yaml:"asset"`
	Amount   string `yaml:"amount"`
}

// LoadSeed reads a seed file. Amounts are decimal strings in the asset's
// smallest unit.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes seed YAML, rejecting unknown keys.
func ParseSeed(raw []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &seed, nil
}
