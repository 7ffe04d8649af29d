package config

// Package config provides a reusable loader for runtime configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"spiritvm/pkg/utils"
	"spiritvm/spiritcore"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a host process running Spirits:
// default resource limits, pricing, credit bootstrap, network exposure, and
// logging. Load fills it from an optional default.yaml under cmd/config or
// config, environment overrides, and the built-in defaults.
type Config struct {
	Sandbox struct {
		MaxMemoryBytes  uint64  `mapstructure:"max_memory_bytes" json:"max_memory_bytes"`
		CPUQuota        float64 `mapstructure:"cpu_quota" json:"cpu_quota"`
		MaxFuel         uint64  `mapstructure:"max_fuel" json:"max_fuel"`
		MaxTableEntries uint32  `mapstructure:"max_table_entries" json:"max_table_entries"`
		MaxInstances    uint32  `mapstructure:"max_instances" json:"max_instances"`
		MaxDurationMS   int     `mapstructure:"max_duration_ms" json:"max_duration_ms"`
	} `mapstructure:"sandbox" json:"sandbox"`

	Pricing struct {
		Free              bool   `mapstructure:"free" json:"free"`
		BaseCost          uint64 `mapstructure:"base_cost" json:"base_cost"`
		PerFuelCost       uint64 `mapstructure:"per_fuel_cost" json:"per_fuel_cost"`
		PerStorageRead    uint64 `mapstructure:"per_storage_read_cost" json:"per_storage_read_cost"`
		PerStorageWrite   uint64 `mapstructure:"per_storage_write_cost" json:"per_storage_write_cost"`
		PerNetworkOp      uint64 `mapstructure:"per_network_op_cost" json:"per_network_op_cost"`
		MinBalance        uint64 `mapstructure:"min_balance" json:"min_balance"`
	} `mapstructure:"pricing" json:"pricing"`

	Credit struct {
		BootstrapBalance uint64 `mapstructure:"bootstrap_balance" json:"bootstrap_balance"`
	} `mapstructure:"credit" json:"credit"`

	Network struct {
		ListenPortMin int `mapstructure:"listen_port_min" json:"listen_port_min"`
		ListenPortMax int `mapstructure:"listen_port_max" json:"listen_port_max"`
	} `mapstructure:"network" json:"network"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
// A .env file in the working directory, if present, is loaded into the
// process environment before viper reads anything, so SPIRIT_* overrides
// placed there take effect the same as real environment variables.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional; absence of .env is not an error

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("SPIRIT")
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SPIRIT_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SPIRIT_ENV", ""))
}

// ResourceLimits translates the sandbox section into the limits type the
// runtime actually enforces.
func (c *Config) ResourceLimits() spiritcore.ResourceLimits {
	return spiritcore.ResourceLimits{
		MaxMemoryBytes:  c.Sandbox.MaxMemoryBytes,
		CPUQuota:        c.Sandbox.CPUQuota,
		MaxFuel:         c.Sandbox.MaxFuel,
		MaxTableEntries: c.Sandbox.MaxTableEntries,
		MaxInstances:    c.Sandbox.MaxInstances,
		MaxDuration:     time.Duration(c.Sandbox.MaxDurationMS) * time.Millisecond,
	}
}

// PricingModel translates the pricing section into the model charged against
// a Spirit's credit balance.
func (c *Config) PricingModel() spiritcore.PricingModel {
	if c.Pricing.Free {
		return spiritcore.FreePricingModel()
	}
	return spiritcore.PricingModel{
		BaseCost:           c.Pricing.BaseCost,
		PerFuelCost:        c.Pricing.PerFuelCost,
		PerStorageReadCost: c.Pricing.PerStorageRead,
		PerStorageWriteCost: c.Pricing.PerStorageWrite,
		PerNetworkOpCost:   c.Pricing.PerNetworkOp,
		MinBalance:         c.Pricing.MinBalance,
	}
}

// setDefaults seeds viper with the runtime's conservative defaults so a
// deployment with no config file at all still starts with sane limits.
func setDefaults() {
	viper.SetDefault("sandbox.max_memory_bytes", 64*1024*1024)
	viper.SetDefault("sandbox.cpu_quota", 0.1)
	viper.SetDefault("sandbox.max_fuel", 1_000_000_000)
	viper.SetDefault("sandbox.max_table_entries", 1000)
	viper.SetDefault("sandbox.max_instances", 1)
	viper.SetDefault("sandbox.max_duration_ms", 30_000)

	viper.SetDefault("pricing.free", false)
	viper.SetDefault("pricing.base_cost", 100)
	viper.SetDefault("pricing.per_fuel_cost", 1)
	viper.SetDefault("pricing.per_storage_read_cost", 10)
	viper.SetDefault("pricing.per_storage_write_cost", 100)
	viper.SetDefault("pricing.per_network_op_cost", 50)
	viper.SetDefault("pricing.min_balance", 1000)

	viper.SetDefault("credit.bootstrap_balance", 1_000_000)

	viper.SetDefault("network.listen_port_min", 20000)
	viper.SetDefault("network.listen_port_max", 40000)

	viper.SetDefault("logging.level", "info")
}
