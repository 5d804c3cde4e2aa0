package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// CollateralEntry registers one collateral asset and the initial 8-decimal
// USD answer its manual feed is seeded with.
type CollateralEntry struct {
	Symbol          string `toml:"Symbol"`
	InitialPriceUSD string `toml:"InitialPriceUSD"`
}

// Config captures the runtime configuration of the stabled daemon.
type Config struct {
	RPCAddress         string            `toml:"RPCAddress"`
	DataDir            string            `toml:"DataDir"`
	MaxPriceAgeSeconds uint64            `toml:"MaxPriceAgeSeconds"`
	Environment        string            `toml:"Environment"`
	Collateral         []CollateralEntry `toml:"collateral"`
}

const (
	defaultRPCAddress = ":8546"
	defaultDataDir    = "./stabled-data"
	// Three hours, matching the tolerance of hourly-heartbeat USD feeds.
	defaultMaxPriceAgeSeconds = 10_800
)

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if c.MaxPriceAgeSeconds == 0 {
		c.MaxPriceAgeSeconds = defaultMaxPriceAgeSeconds
	}
}

// MaxPriceAge returns the configured oracle freshness window.
func (c *Config) MaxPriceAge() time.Duration {
	return time.Duration(c.MaxPriceAgeSeconds) * time.Second
}

// Validate rejects malformed configuration before any daemon state exists.
func (c *Config) Validate() error {
	if len(c.Collateral) == 0 {
		return fmt.Errorf("config: at least one collateral entry required")
	}
	seen := make(map[string]struct{}, len(c.Collateral))
	for i, entry := range c.Collateral {
		symbol := strings.TrimSpace(entry.Symbol)
		if symbol == "" {
			return fmt.Errorf("config: collateral entry %d has no symbol", i)
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("config: duplicate collateral symbol %q", symbol)
		}
		seen[symbol] = struct{}{}
		if _, err := entry.InitialPrice(); err != nil {
			return err
		}
	}
	return nil
}

// InitialPrice parses the entry's seed price into an 8-decimal integer.
func (e CollateralEntry) InitialPrice() (*big.Int, error) {
	trimmed := strings.TrimSpace(e.InitialPriceUSD)
	price, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("config: collateral %q has invalid InitialPriceUSD %q", e.Symbol, e.InitialPriceUSD)
	}
	return price, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:         defaultRPCAddress,
		DataDir:            defaultDataDir,
		MaxPriceAgeSeconds: defaultMaxPriceAgeSeconds,
		Collateral: []CollateralEntry{
			{Symbol: "WETH", InitialPriceUSD: "200000000000"},
			{Symbol: "WBTC", InitialPriceUSD: "3000000000000"},
		},
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create default: %w", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: write default: %w", err)
	}
	return cfg, nil
}
