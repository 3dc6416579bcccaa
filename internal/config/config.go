package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ChainID      uint64
	RPC          []string
	Platform     string
	Holders      []string
	SlippageBps  uint32
	Deadline     time.Duration
	Out          string
	PGDSN        string
	VaultDB      string
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
	Executor     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DESK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("platform", "uniswap-v3")
	v.SetDefault("slippage-bps", 50)
	v.SetDefault("deadline", 20*time.Minute)
	v.SetDefault("vault-db", "./data/vaults.db")
	v.SetDefault("batch-size", 50)
	v.SetDefault("max-retries", 1)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		ChainID:      v.GetUint64("chain-id"),
		RPC:          getStringSlice(v, "rpc"),
		Platform:     v.GetString("platform"),
		Holders:      getStringSlice(v, "holder"),
		SlippageBps:  v.GetUint32("slippage-bps"),
		Deadline:     v.GetDuration("deadline"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		VaultDB:      v.GetString("vault-db"),
		BatchSize:    v.GetInt("batch-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
		Executor:     v.GetString("executor"),
	}

	if cfg.Deadline <= 0 {
		return Config{}, fmt.Errorf("deadline must be positive")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("batch-size must be positive")
	}

	return cfg, nil
}

// DeadlineAt returns the unix deadline for transactions built at now.
func (c Config) DeadlineAt(now time.Time) uint64 {
	return uint64(now.Add(c.Deadline).Unix())
}

// ExecutorAddress parses the executor override, or returns nil when unset.
func (c Config) ExecutorAddress() (*common.Address, error) {
	if strings.TrimSpace(c.Executor) == "" {
		return nil, nil
	}
	addresses, err := ParseAddresses([]string{c.Executor})
	if err != nil {
		return nil, err
	}
	return &addresses[0], nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
