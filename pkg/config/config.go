// Package config provides a reusable loader for corevm engine
// configuration files and environment variables. It is versioned so
// that applications can depend on a stable API contract.
//
// Version: v0.2.0
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/synnergy-network/corevm/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config holds the engine-wide tunables that spec §5 requires to be
// fixed at process start and never mutated mid transaction: call-depth
// and byte-accounting limits, the manifest parser's depth headroom, fee
// reserve defaults, and the bech32 HRP prefix used for address text
// form (spec §6).
type Config struct {
	Kernel struct {
		MaxCallDepth          int `mapstructure:"max_call_depth" json:"max_call_depth"`
		MaxSubstateReadBytes  int `mapstructure:"max_substate_read_bytes" json:"max_substate_read_bytes"`
		MaxSubstateWriteBytes int `mapstructure:"max_substate_write_bytes" json:"max_substate_write_bytes"`
		MaxWasmMemoryPages    int `mapstructure:"max_wasm_memory_pages" json:"max_wasm_memory_pages"`
	} `mapstructure:"kernel" json:"kernel"`

	Manifest struct {
		MaxSborDepth int `mapstructure:"max_sbor_depth" json:"max_sbor_depth"`
	} `mapstructure:"manifest" json:"manifest"`

	Fee struct {
		DefaultCostUnitPrice string `mapstructure:"default_cost_unit_price" json:"default_cost_unit_price"`
		SystemLoanUnits      uint64 `mapstructure:"system_loan_units" json:"system_loan_units"`
	} `mapstructure:"fee" json:"fee"`

	Address struct {
		NetworkHRPPrefix string `mapstructure:"network_hrp_prefix" json:"network_hrp_prefix"`
	} `mapstructure:"address" json:"address"`

	Store struct {
		BoltPath string `mapstructure:"bolt_path" json:"bolt_path"`
	} `mapstructure:"store" json:"store"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// Default returns the compiled-in defaults used when no configuration
// file is present, matching the bounds named throughout spec §4-§6.
func Default() Config {
	var c Config
	c.Kernel.MaxCallDepth = 32
	c.Kernel.MaxSubstateReadBytes = 64 * 1024 * 1024
	c.Kernel.MaxSubstateWriteBytes = 16 * 1024 * 1024
	c.Kernel.MaxWasmMemoryPages = 1024 // 64 MiB
	c.Manifest.MaxSborDepth = 20
	c.Fee.DefaultCostUnitPrice = "0.00000005"
	c.Fee.SystemLoanUnits = 500000
	c.Address.NetworkHRPPrefix = "sim"
	c.Store.BoltPath = "corevm.db"
	c.Logging.Level = "info"
	return c
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig = Default()

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration plus
// compiled-in defaults are used.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional .env overlay, ignored if absent

	AppConfig = Default()

	v := viper.New()
	v.SetConfigName("default")
	v.AddConfigPath("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	} else if env != "" {
		v.SetConfigName(env)
		if err := v.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	v.AutomaticEnv()
	if err := v.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the COREVM_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("COREVM_ENV", ""))
}
