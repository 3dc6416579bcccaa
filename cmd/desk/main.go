package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityDesk/internal/adapter"
	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

func main() {
	root := &cobra.Command{
		Use:          "desk",
		Short:        "Concentrated liquidity position desk",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.Uint64("chain-id", 1, "chain id")
	flags.StringSlice("rpc", nil, "ordered rpc endpoints overriding the registry (comma-separated)")
	flags.String("platform", string(model.PlatformUniswapV3), "platform id (uniswap-v3, pancakeswap-v3)")
	flags.Int("batch-size", 50, "calls per json-rpc batch")
	flags.Int("max-retries", 1, "retries of a failed read on the next endpoint")
	flags.Duration("retry-backoff", 250*time.Millisecond, "backoff before a retried read")
	flags.String("executor", "", "automation executor address override")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(chainsCmd())
	root.AddCommand(poolCmd())
	root.AddCommand(positionsCmd())
	root.AddCommand(calldataCmd())
	root.AddCommand(vaultsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// session is everything a command needs to talk to one platform on one chain.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	reader  *chain.FallbackReader
	adapter *adapter.Adapter
}

func (s *session) Close() {
	s.reader.Close()
	_ = s.logger.Sync()
}

// openSession applies the config overrides to the registry, dials the chain's
// endpoints and builds the adapter of the configured platform.
func openSession(ctx context.Context, cfg config.Config, logger *zap.Logger) (*session, error) {
	executor, err := cfg.ExecutorAddress()
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	reg, err := registry.Default().WithOverrides(cfg.ChainID, cfg.RPC, executor)
	if err != nil {
		return nil, err
	}
	chainCfg, err := reg.Chain(cfg.ChainID)
	if err != nil {
		return nil, err
	}

	reader, err := chain.DialFallback(ctx, cfg.ChainID, chainCfg.RPCEndpoints,
		chain.WithDialer(chain.ClientDialer(chain.WithBatchSize(cfg.BatchSize))),
		chain.WithLogger(logger),
		chain.WithRetries(cfg.MaxRetries, cfg.RetryBackoff),
	)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	factory := adapter.NewFactory(reg,
		adapter.WithLogger(logger),
		adapter.WithBatchSize(cfg.BatchSize),
	)
	a, err := factory.New(model.PlatformID(cfg.Platform), cfg.ChainID, reader)
	if err != nil {
		reader.Close()
		return nil, err
	}

	logger.Info("session open",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("chain", chainCfg.Name),
		zap.String("platform", cfg.Platform),
		zap.String("rpc", reader.ActiveURL()),
	)
	return &session{cfg: cfg, logger: logger, reader: reader, adapter: a}, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
