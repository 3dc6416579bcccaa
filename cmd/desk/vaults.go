package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDesk/internal/config"
	"liquidityDesk/internal/storage/sqlite"
)

func vaultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaults",
		Short: "Manage the list of known vault contracts",
	}
	cmd.PersistentFlags().String("vault-db", "./data/vaults.db", "SQLite file of known vaults")

	add := &cobra.Command{
		Use:   "add <address> [label]",
		Short: "Register a vault",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withVaults(func(ctx context.Context, cmd *cobra.Command, cfg config.Config, vaults *sqlite.VaultStore, args []string) error {
			addresses, err := config.ParseAddresses(args[:1])
			if err != nil {
				return err
			}
			label := ""
			if len(args) == 2 {
				label = args[1]
			}
			return vaults.Add(ctx, cfg.ChainID, addresses[0], label)
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List vaults of the selected chain",
		RunE: withVaults(func(ctx context.Context, cmd *cobra.Command, cfg config.Config, vaults *sqlite.VaultStore, _ []string) error {
			rows, err := vaults.List(ctx, cfg.ChainID)
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <address>",
		Short: "Forget a vault",
		Args:  cobra.ExactArgs(1),
		RunE: withVaults(func(ctx context.Context, cmd *cobra.Command, cfg config.Config, vaults *sqlite.VaultStore, args []string) error {
			addresses, err := config.ParseAddresses(args)
			if err != nil {
				return err
			}
			removed, err := vaults.Remove(ctx, cfg.ChainID, addresses[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("vault %s is not registered on chain %d", addresses[0].Hex(), cfg.ChainID)
			}
			return nil
		}),
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

type vaultsFunc func(ctx context.Context, cmd *cobra.Command, cfg config.Config, vaults *sqlite.VaultStore, args []string) error

func withVaults(fn vaultsFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		vaults, err := sqlite.OpenVaultStore(cfg.VaultDB)
		if err != nil {
			return fmt.Errorf("open vault db: %w", err)
		}
		defer vaults.Close()

		if err := fn(cmd.Context(), cmd, cfg, vaults, args); err != nil {
			return err
		}
		logger.Debug("vaults updated", zap.String("command", cmd.Name()), zap.String("vault_db", cfg.VaultDB))
		return nil
	}
}
