package services

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "6s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AuctionDefaults bound registrations that omit their own parameters.
type AuctionDefaults struct {
	ReservePrice uint64 `yaml:"reserve_price"`
	MinDeposit   uint64 `yaml:"min_deposit"`
}

// RouletteConfig describes the parity event the service runs, if enabled.
type RouletteConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Pool        uint64 `yaml:"pool"`
	MinDeposit  uint64 `yaml:"min_deposit"`
	InitialSlot uint64 `yaml:"initial_slot"`
	Interval    uint64 `yaml:"interval"`
}

// Config carries everything the engine service needs to start.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	EnablePprof bool   `yaml:"enable_pprof"`

	// PostgresDSN enables durable round storage. Empty means in-memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// BeaconSeed seeds the development beacon. Hex-decoded by the caller.
	BeaconSeed string `yaml:"beacon_seed"`

	// SlotDuration is the wall-clock length of one slot.
	SlotDuration Duration `yaml:"slot_duration"`

	Auction  AuctionDefaults `yaml:"auction"`
	Roulette RouletteConfig  `yaml:"roulette"`
}

// DefaultConfig returns a config suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":8080",
		SlotDuration: Duration(6 * time.Second),
		Auction: AuctionDefaults{
			ReservePrice: 1,
			MinDeposit:   1,
		},
		Roulette: RouletteConfig{
			Pool:       100,
			MinDeposit: 1,
			Interval:   10,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if c.SlotDuration <= 0 {
		return fmt.Errorf("slot_duration must be positive")
	}
	if c.Roulette.Enabled && c.Roulette.Interval == 0 {
		return fmt.Errorf("roulette interval must be positive")
	}
	return nil
}
