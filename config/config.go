package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"gridchain/crypto"
	"gridchain/native/market"
)

// Config is the on-disk node configuration.
type Config struct {
	DataDir string `toml:"DataDir"`
	// Authority is the bech32 account allowed to run liquidation sweeps and
	// override global tunables.
	Authority string `toml:"Authority"`
	// Reserve is the bech32 account credited with seized liquidation
	// penalties.
	Reserve string `toml:"Reserve"`
	Pauses  Pauses `toml:"pauses"`
	Market  Market `toml:"market"`
}

// Pauses is the governance switchboard for native modules.
type Pauses struct {
	Market bool `toml:"Market"`
}

// IsPaused reports whether the named module is paused.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "market":
		return p.Market
	default:
		return false
	}
}

// Market carries the engine tunables. Zero values fall back to the engine
// defaults; fractional rates are written as rationals, for example "1/10".
type Market struct {
	ServiceIntervalSecs    uint64 `toml:"ServiceIntervalSecs"`
	OrderServiceEpochSecs  uint64 `toml:"OrderServiceEpochSecs"`
	ClaimsIntervalSecs     uint64 `toml:"ClaimsIntervalSecs"`
	BillAccrualWindowSecs  uint64 `toml:"BillAccrualWindowSecs"`
	BenchmarkRate          uint64 `toml:"BenchmarkRate"`
	PenaltyRate            uint64 `toml:"PenaltyRate"`
	InitialPrice           uint64 `toml:"InitialPrice"`
	IncentiveRate          string `toml:"IncentiveRate"`
	MinStakeFraction       string `toml:"MinStakeFraction"`
	MinRemainFraction      string `toml:"MinRemainFraction"`
	RateChangeIntervalSecs uint64 `toml:"RateChangeIntervalSecs"`
	RedeemLockDurationSecs uint64 `toml:"RedeemLockDurationSecs"`
	PriceWindowSecs        uint64 `toml:"PriceWindowSecs"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./grid-data"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the address fields and rate strings without touching disk.
func (c *Config) Validate() error {
	if _, err := c.AuthorityAddress(); err != nil {
		return err
	}
	if _, err := c.ReserveAddress(); err != nil {
		return err
	}
	if _, err := c.Market.Params(); err != nil {
		return err
	}
	return nil
}

// AuthorityAddress decodes the configured authority account.
func (c *Config) AuthorityAddress() (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(c.Authority)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: invalid Authority: %w", err)
	}
	return addr, nil
}

// ReserveAddress decodes the configured reserve account.
func (c *Config) ReserveAddress() (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(c.Reserve)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: invalid Reserve: %w", err)
	}
	return addr, nil
}

// Params resolves the market section into engine parameters. Unset fields stay
// zero and are filled in by the engine defaults.
func (m Market) Params() (market.Params, error) {
	p := market.Params{
		ServiceInterval:    m.ServiceIntervalSecs,
		OrderServiceEpoch:  m.OrderServiceEpochSecs,
		ClaimsInterval:     m.ClaimsIntervalSecs,
		BillAccrualWindow:  m.BillAccrualWindowSecs,
		BenchmarkRate:      m.BenchmarkRate,
		PenaltyRate:        m.PenaltyRate,
		InitialPrice:       m.InitialPrice,
		RateChangeInterval: m.RateChangeIntervalSecs,
		RedeemLockDuration: m.RedeemLockDurationSecs,
		PriceWindow:        m.PriceWindowSecs,
	}
	var err error
	if p.IncentiveRate, err = parseRate("market.IncentiveRate", m.IncentiveRate); err != nil {
		return p, err
	}
	if p.MinStakeFraction, err = parseRate("market.MinStakeFraction", m.MinStakeFraction); err != nil {
		return p, err
	}
	if p.MinRemainFraction, err = parseRate("market.MinRemainFraction", m.MinRemainFraction); err != nil {
		return p, err
	}
	if m.PenaltyRate > 100 {
		return p, fmt.Errorf("config: market.PenaltyRate %d exceeds 100", m.PenaltyRate)
	}
	return p, nil
}

func parseRate(field, value string) (*big.Rat, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	r, ok := new(big.Rat).SetString(value)
	if !ok || r.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid %s %q", field, value)
	}
	return r, nil
}

// createDefault creates and saves a default configuration file. The authority
// and reserve accounts are left empty; the node refuses to start until they
// are filled in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{DataDir: "./grid-data"}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
