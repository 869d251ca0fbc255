package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LogFormatPlain defines a logging format used for human-readable
	// text-based logging that is not structured. Typically used for console
	// output.
	LogFormatPlain = "plain"

	// LogFormatJSON defines a logging format for structured JSON-based
	// logging that is typically used in production environments, which can
	// be sent to logging facilities that support complex log parsing and
	// querying.
	LogFormatJSON = "json"
)

// DefaultBridgeDir is the default home directory name, relative to $HOME.
var DefaultBridgeDir = ".hdbridge"

var (
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration for an hdbridge node.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Ledger          *LedgerConfig          `mapstructure:"ledger"`
	Relay           *RelayConfig           `mapstructure:"relay"`
	Store           *StoreConfig           `mapstructure:"store"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for an hdbridge node.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Ledger:          DefaultLedgerConfig(),
		Relay:           DefaultRelayConfig(),
		Store:           DefaultStoreConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Moniker = "test-bridge"
	cfg.Store.Backend = "memdb"
	cfg.Instrumentation.Prometheus = false
	return cfg
}

// SetRoot sets the RootDir for all Config structs.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	cfg.Store.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Ledger.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [ledger] section: %w", err)
	}
	if err := cfg.Relay.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [relay] section: %w", err)
	}
	if err := cfg.Store.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [store] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for an hdbridge node.
type BaseConfig struct {
	// The root directory for all data.
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`

	// Identities granted the admin role at first boot. Ignored once a
	// registry snapshot exists in the store.
	Admins []string `mapstructure:"admins"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   defaultMoniker(),
		LogLevel:  "info",
		LogFormat: LogFormatPlain,
	}
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatJSON, LogFormatPlain:
	default:
		return errors.New("unknown log format (must be 'plain' or 'json')")
	}
	return nil
}

func defaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}

//-----------------------------------------------------------------------------
// LedgerConfig

// LedgerConfig defines the configuration for the proof ledger and
// finalization engine.
type LedgerConfig struct {
	// Number of distinct approving validator votes a proof needs before it
	// can finalize.
	RequiredValidators int `mapstructure:"required-validators"`

	// How long after submission votes are still accepted.
	ValidationWindow time.Duration `mapstructure:"validation-window"`
}

// DefaultLedgerConfig returns a default configuration for the proof ledger.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		RequiredValidators: 3,
		ValidationWindow:   24 * time.Hour,
	}
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *LedgerConfig) ValidateBasic() error {
	if cfg.RequiredValidators < 1 {
		return errors.New("required-validators can't be less than 1")
	}
	if cfg.ValidationWindow <= 0 {
		return errors.New("validation-window must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// RelayConfig

// RelayConfig defines the configuration for the transfer coordinator.
type RelayConfig struct {
	// Number of distinct relayer confirmations a transfer needs before it
	// completes.
	RequiredConfirmations int `mapstructure:"required-confirmations"`
}

// DefaultRelayConfig returns a default configuration for the transfer
// coordinator.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		RequiredConfirmations: 3,
	}
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *RelayConfig) ValidateBasic() error {
	if cfg.RequiredConfirmations < 1 {
		return errors.New("required-confirmations can't be less than 1")
	}
	return nil
}

//-----------------------------------------------------------------------------
// StoreConfig

// StoreConfig defines the configuration for bridge persistence.
type StoreConfig struct {
	RootDir string `mapstructure:"home"`

	// Database backend: goleveldb | memdb
	Backend string `mapstructure:"backend"`
}

// DefaultStoreConfig returns a default configuration for bridge persistence.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Backend: "goleveldb",
	}
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *StoreConfig) ValidateBasic() error {
	switch cfg.Backend {
	case "goleveldb", "memdb":
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	return nil
}

// DBDir returns the full path to the database directory.
func (cfg *StoreConfig) DBDir() string {
	return filepath.Join(cfg.RootDir, defaultDataDir)
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Maximum number of simultaneous connections.
	MaxOpenConnections int `mapstructure:"max-open-connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "hdbridge",
	}
}
