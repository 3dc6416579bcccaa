package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDesk/internal/adapter"
	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/storage"
	"liquidityDesk/internal/storage/postgres"
	"liquidityDesk/internal/storage/sqlite"
)

func poolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Read one pool's state",
		RunE:  runPool,
	}
	cmd.Flags().String("token-a", "", "first token (symbol or address)")
	cmd.Flags().String("token-b", "", "second token (symbol or address)")
	cmd.Flags().Uint32("fee", 3000, "fee tier in hundredths of a bip")
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	return cmd
}

type poolOutput struct {
	Address      common.Address `json:"address"`
	BlockNumber  uint64         `json:"block_number"`
	Token0       model.Token    `json:"token0"`
	Token1       model.Token    `json:"token1"`
	Fee          uint32         `json:"fee"`
	TickSpacing  int32          `json:"tick_spacing"`
	Tick         int32          `json:"tick"`
	SqrtPriceX96 string         `json:"sqrt_price_x96"`
	Liquidity    string         `json:"liquidity"`
	Price        string         `json:"price"`
	InversePrice string         `json:"inverse_price"`
}

func runPool(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tokenA, _ := cmd.Flags().GetString("token-a")
	tokenB, _ := cmd.Flags().GetString("token-b")
	fee, _ := cmd.Flags().GetUint32("fee")
	block, _ := cmd.Flags().GetUint64("block")
	if tokenA == "" || tokenB == "" {
		return fmt.Errorf("token-a and token-b are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.adapter.LookupToken(ctx, tokenA)
	if err != nil {
		return err
	}
	b, err := s.adapter.LookupToken(ctx, tokenB)
	if err != nil {
		return err
	}
	view, err := s.adapter.Pool(ctx, a.Address, b.Address, fee, block)
	if err != nil {
		return err
	}
	price, err := view.Price(view.Token0, view.Token1)
	if err != nil {
		return err
	}
	inverse, err := view.Price(view.Token1, view.Token0)
	if err != nil {
		return err
	}

	return printJSON(cmd, poolOutput{
		Address:      view.Address,
		BlockNumber:  view.State.BlockNumber,
		Token0:       view.Token0,
		Token1:       view.Token1,
		Fee:          view.Key.Fee,
		TickSpacing:  view.TickSpacing,
		Tick:         view.State.Tick,
		SqrtPriceX96: model.BigString(view.State.SqrtPriceX96),
		Liquidity:    model.BigString(view.State.Liquidity),
		Price:        clmath.FormatPrice(price),
		InversePrice: clmath.FormatPrice(inverse),
	})
}

func positionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Snapshot every position of the given holders",
		RunE:  runPositions,
	}
	cmd.Flags().StringSlice("holder", nil, "holder addresses, wallets or vaults (comma-separated)")
	cmd.Flags().String("out", "", "append records to this JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN to store the snapshot in")
	cmd.Flags().String("vault-db", "./data/vaults.db", "SQLite file of known vaults")
	return cmd
}

func runPositions(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	holders, err := config.ParseAddresses(cfg.Holders)
	if err != nil {
		return err
	}
	if len(holders) == 0 {
		return fmt.Errorf("holder list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	inVault, err := loadVaults(ctx, cfg)
	if err != nil {
		return err
	}

	logger.Info("snapshot start", zap.Int("holders", len(holders)))
	snap, err := s.adapter.Refresh(ctx, holders...)
	if snap == nil {
		return err
	}
	var partial *model.PartialError
	if errors.As(err, &partial) {
		logger.Warn("snapshot incomplete", zap.Int("failures", len(partial.Failures)))
	}

	records := snap.Records(inVault)
	if err := persist(ctx, cfg, snap, records, logger); err != nil {
		return err
	}

	logger.Info("snapshot complete",
		zap.Uint64("block", snap.BlockNumber),
		zap.Uint64("epoch", snap.Epoch),
		zap.Int("positions", len(records)),
		zap.Int("pools", len(snap.Pools)),
	)
	return printJSON(cmd, records)
}

func loadVaults(ctx context.Context, cfg config.Config) (func(common.Address) bool, error) {
	if cfg.VaultDB == "" {
		return nil, nil
	}
	vaults, err := sqlite.OpenVaultStore(cfg.VaultDB)
	if err != nil {
		return nil, fmt.Errorf("open vault db: %w", err)
	}
	defer vaults.Close()
	return vaults.Set(ctx, cfg.ChainID)
}

func persist(ctx context.Context, cfg config.Config, snap *adapter.Snapshot, records []model.PositionRecord, logger *zap.Logger) error {
	pools := snap.PoolRecords()

	if cfg.Out != "" {
		sink := storage.NewJsonlStorage(cfg.Out)
		if err := sink.PutPositions(records); err != nil {
			return err
		}
		if err := sink.PutPools(pools); err != nil {
			return err
		}
		logger.Info("snapshot written", zap.String("out", cfg.Out), zap.String("pools_out", sink.PoolsPath()))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		latest, found, err := store.LatestBlock(ctx, snap.ChainID, string(snap.Platform))
		if err != nil {
			return fmt.Errorf("latest stored block: %w", err)
		}
		if found && latest > snap.BlockNumber {
			logger.Warn("snapshot older than stored data",
				zap.Uint64("block", snap.BlockNumber),
				zap.Uint64("stored_block", latest),
			)
		}
		stored, err := store.InsertPositionSnapshots(ctx, records)
		if err != nil {
			return fmt.Errorf("insert positions: %w", err)
		}
		if skipped := len(records) - stored; skipped > 0 {
			logger.Warn("positions without token id not stored", zap.Int("skipped", skipped))
		}
		logger.Info("snapshot stored", zap.Int("positions", stored), zap.Int("pools", len(pools)))
	}
	return nil
}
