package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDesk/internal/adapter"
	"liquidityDesk/internal/clmath"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
)

func calldataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calldata",
		Short: "Build unsigned position manager transactions",
	}
	cmd.PersistentFlags().Uint32("slippage-bps", 50, "slippage tolerance in basis points (10-500)")
	cmd.PersistentFlags().Duration("deadline", 20*time.Minute, "deadline relative to now")

	mint := &cobra.Command{Use: "mint", Short: "Open a new position", RunE: withSession(runMint)}
	mint.Flags().String("token-a", "", "first token (symbol or address)")
	mint.Flags().String("token-b", "", "second token (symbol or address)")
	mint.Flags().Uint32("fee", 3000, "fee tier")
	mint.Flags().Int32("tick-lower", 0, "lower tick")
	mint.Flags().Int32("tick-upper", 0, "upper tick")
	mint.Flags().String("price-lower", "", "lower price as token1 per token0, aligned down to the tick spacing")
	mint.Flags().String("price-upper", "", "upper price as token1 per token0, aligned up to the tick spacing")
	mint.Flags().String("amount-a", "0", "desired amount of token-a in whole units")
	mint.Flags().String("amount-b", "0", "desired amount of token-b in whole units")
	mint.Flags().String("recipient", "", "owner of the minted position")

	increase := &cobra.Command{Use: "increase", Short: "Add liquidity to a position", RunE: withSession(runIncrease)}
	increase.Flags().String("token-id", "", "position token id")
	increase.Flags().String("amount0", "0", "desired amount of token0 in whole units")
	increase.Flags().String("amount1", "0", "desired amount of token1 in whole units")

	decrease := &cobra.Command{Use: "decrease", Short: "Remove a share of a position's liquidity", RunE: withSession(runDecrease)}
	decrease.Flags().String("token-id", "", "position token id")
	decrease.Flags().Uint32("percentage-bps", 10_000, "share of liquidity to remove in basis points")

	collect := &cobra.Command{Use: "collect", Short: "Collect everything owed to a position", RunE: withSession(runCollect)}
	collect.Flags().String("token-id", "", "position token id")
	collect.Flags().String("recipient", "", "receiver of the collected tokens")

	burn := &cobra.Command{Use: "burn", Short: "Burn an empty position", RunE: withSession(runBurn)}
	burn.Flags().String("token-id", "", "position token id")

	closeCmd := &cobra.Command{Use: "close", Short: "Withdraw everything and optionally burn", RunE: withSession(runClose)}
	closeCmd.Flags().String("token-id", "", "position token id")
	closeCmd.Flags().String("recipient", "", "receiver of the withdrawn tokens")
	closeCmd.Flags().Bool("burn", false, "burn the position after collecting")
	closeCmd.Flags().Bool("require-atomic", false, "fail instead of returning sequential transactions")

	cmd.AddCommand(mint, increase, decrease, collect, burn, closeCmd)
	return cmd
}

type sessionFunc func(ctx context.Context, cmd *cobra.Command, s *session) error

func withSession(fn sessionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, cmd, s)
	}
}

func tokenIDFlag(cmd *cobra.Command) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString("token-id")
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid token-id %q", raw)
	}
	return id, nil
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	addresses, err := config.ParseAddresses([]string{raw})
	if err != nil {
		return common.Address{}, err
	}
	if len(addresses) == 0 {
		return common.Address{}, fmt.Errorf("%s is required", name)
	}
	return addresses[0], nil
}

func amountFlag(cmd *cobra.Command, name string, token model.Token) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	amount, err := model.ParseUnits(raw, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return amount, nil
}

func deadline(cfg config.Config) uint64 {
	return cfg.DeadlineAt(time.Now())
}

func runMint(ctx context.Context, cmd *cobra.Command, s *session) error {
	refA, _ := cmd.Flags().GetString("token-a")
	refB, _ := cmd.Flags().GetString("token-b")
	fee, _ := cmd.Flags().GetUint32("fee")
	a, err := s.adapter.LookupToken(ctx, refA)
	if err != nil {
		return err
	}
	b, err := s.adapter.LookupToken(ctx, refB)
	if err != nil {
		return err
	}
	amountA, err := amountFlag(cmd, "amount-a", a)
	if err != nil {
		return err
	}
	amountB, err := amountFlag(cmd, "amount-b", b)
	if err != nil {
		return err
	}
	if !model.SortsBefore(a.Address, b.Address) {
		a, b = b, a
		amountA, amountB = amountB, amountA
	}
	recipient, err := addressFlag(cmd, "recipient")
	if err != nil {
		return err
	}
	lower, upper, err := mintRange(cmd, s.adapter, a, b, fee)
	if err != nil {
		return err
	}

	tx, err := s.adapter.Mint(dex.MintRequest{
		Token0:         a.Address,
		Token1:         b.Address,
		Fee:            fee,
		TickLower:      lower,
		TickUpper:      upper,
		Amount0Desired: amountA,
		Amount1Desired: amountB,
		SlippageBps:    s.cfg.SlippageBps,
		Recipient:      recipient,
		Deadline:       deadline(s.cfg),
	})
	if err != nil {
		return err
	}
	s.logger.Info("mint built", zap.Int32("tick_lower", lower), zap.Int32("tick_upper", upper))
	return printJSON(cmd, tx)
}

// mintRange takes explicit ticks unless prices are given.
func mintRange(cmd *cobra.Command, a *adapter.Adapter, token0, token1 model.Token, fee uint32) (int32, int32, error) {
	lower, _ := cmd.Flags().GetInt32("tick-lower")
	upper, _ := cmd.Flags().GetInt32("tick-upper")
	priceLower, _ := cmd.Flags().GetString("price-lower")
	priceUpper, _ := cmd.Flags().GetString("price-upper")

	var err error
	if priceLower != "" {
		if lower, err = priceTick(a, priceLower, token0, token1, fee, false); err != nil {
			return 0, 0, fmt.Errorf("price-lower: %w", err)
		}
	}
	if priceUpper != "" {
		if upper, err = priceTick(a, priceUpper, token0, token1, fee, true); err != nil {
			return 0, 0, fmt.Errorf("price-upper: %w", err)
		}
	}
	return lower, upper, nil
}

func priceTick(a *adapter.Adapter, raw string, token0, token1 model.Token, fee uint32, roundUp bool) (int32, error) {
	price, err := clmath.ParsePrice(raw)
	if err != nil {
		return 0, err
	}
	tick, err := a.PriceToTick(price, token0, token1)
	if err != nil {
		return 0, err
	}
	return a.AlignTick(tick, fee, roundUp)
}

func runIncrease(ctx context.Context, cmd *cobra.Command, s *session) error {
	id, err := tokenIDFlag(cmd)
	if err != nil {
		return err
	}
	view, err := s.adapter.Position(ctx, id, 0)
	if err != nil {
		return err
	}
	if view.Status == model.StatusBurned {
		return fmt.Errorf("%w: token %s", model.ErrPositionBurned, id)
	}
	amount0, err := amountFlag(cmd, "amount0", view.Token0)
	if err != nil {
		return err
	}
	amount1, err := amountFlag(cmd, "amount1", view.Token1)
	if err != nil {
		return err
	}
	tx, err := s.adapter.IncreaseLiquidity(dex.IncreaseRequest{
		TokenID:        id,
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		SlippageBps:    s.cfg.SlippageBps,
		Deadline:       deadline(s.cfg),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, tx)
}

func runDecrease(ctx context.Context, cmd *cobra.Command, s *session) error {
	id, err := tokenIDFlag(cmd)
	if err != nil {
		return err
	}
	pct, _ := cmd.Flags().GetUint32("percentage-bps")
	tx, err := s.adapter.DecreaseLiquidity(ctx, adapter.DecreaseIntent{
		TokenID:       id,
		PercentageBps: pct,
		SlippageBps:   s.cfg.SlippageBps,
		Deadline:      deadline(s.cfg),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, tx)
}

func runCollect(_ context.Context, cmd *cobra.Command, s *session) error {
	id, err := tokenIDFlag(cmd)
	if err != nil {
		return err
	}
	recipient, err := addressFlag(cmd, "recipient")
	if err != nil {
		return err
	}
	tx, err := s.adapter.Collect(id, recipient)
	if err != nil {
		return err
	}
	return printJSON(cmd, tx)
}

func runBurn(ctx context.Context, cmd *cobra.Command, s *session) error {
	id, err := tokenIDFlag(cmd)
	if err != nil {
		return err
	}
	tx, err := s.adapter.Burn(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd, tx)
}

func runClose(ctx context.Context, cmd *cobra.Command, s *session) error {
	id, err := tokenIDFlag(cmd)
	if err != nil {
		return err
	}
	recipient, err := addressFlag(cmd, "recipient")
	if err != nil {
		return err
	}
	burn, _ := cmd.Flags().GetBool("burn")
	atomic, _ := cmd.Flags().GetBool("require-atomic")
	plan, err := s.adapter.Close(ctx, adapter.CloseIntent{
		TokenID:       id,
		SlippageBps:   s.cfg.SlippageBps,
		Recipient:     recipient,
		Deadline:      deadline(s.cfg),
		Burn:          burn,
		RequireAtomic: atomic,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, plan)
}
