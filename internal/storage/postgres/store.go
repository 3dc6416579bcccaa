package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityDesk/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id BIGINT NOT NULL,
	platform TEXT NOT NULL,
	pool_address TEXT NOT NULL,
	token0 TEXT NOT NULL,
	token1 TEXT NOT NULL,
	fee INTEGER NOT NULL,
	tick_spacing INTEGER NOT NULL,
	first_seen_block BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address)
);
CREATE TABLE IF NOT EXISTS position_snapshots (
	chain_id BIGINT NOT NULL,
	platform TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	token_id TEXT NOT NULL,
	holder TEXT NOT NULL,
	in_vault BOOLEAN NOT NULL,
	pool_address TEXT NOT NULL,
	tick_lower INTEGER NOT NULL,
	tick_upper INTEGER NOT NULL,
	tick INTEGER NOT NULL,
	liquidity NUMERIC NOT NULL,
	status TEXT NOT NULL,
	in_range BOOLEAN NOT NULL,
	amount0 NUMERIC NOT NULL,
	amount1 NUMERIC NOT NULL,
	fees0 NUMERIC NOT NULL,
	fees1 NUMERIC NOT NULL,
	price_current TEXT NOT NULL,
	error TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, platform, token_id, block_number)
);`

// Store provides Postgres persistence for position snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, platform, pool_address, token0, token1, fee, tick_spacing, first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				platform = EXCLUDED.platform,
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`, poolArgs(pool)...)
	}
	return s.send(ctx, batch)
}

// InsertPositionSnapshots stores one row per position and block and returns the
// number of rows written. Records of a partial snapshot that never resolved a
// token id have no key and are skipped. Re-inserting the same (position, block)
// overwrites the derived values.
func (s *Store) InsertPositionSnapshots(ctx context.Context, records []model.PositionRecord) (int, error) {
	rows, err := positionRows(records)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(`
			INSERT INTO position_snapshots (
				chain_id, platform, block_number, token_id, holder, in_vault, pool_address,
				tick_lower, tick_upper, tick, liquidity, status, in_range,
				amount0, amount1, fees0, fees1, price_current, error, captured_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
			ON CONFLICT (chain_id, platform, token_id, block_number)
			DO UPDATE SET
				holder = EXCLUDED.holder,
				in_vault = EXCLUDED.in_vault,
				tick = EXCLUDED.tick,
				liquidity = EXCLUDED.liquidity,
				status = EXCLUDED.status,
				in_range = EXCLUDED.in_range,
				amount0 = EXCLUDED.amount0,
				amount1 = EXCLUDED.amount1,
				fees0 = EXCLUDED.fees0,
				fees1 = EXCLUDED.fees1,
				price_current = EXCLUDED.price_current,
				error = EXCLUDED.error,
				captured_at = EXCLUDED.captured_at
		`, args...)
	}
	if err := s.send(ctx, batch); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func positionRows(records []model.PositionRecord) ([][]interface{}, error) {
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		if r.TokenID == "" {
			continue
		}
		args, err := positionArgs(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, args)
	}
	return rows, nil
}

// LatestBlock returns the highest snapshot block stored for a chain and platform.
func (s *Store) LatestBlock(ctx context.Context, chainID uint64, platform string) (uint64, bool, error) {
	var block *int64
	row := s.pool.QueryRow(ctx,
		`SELECT max(block_number) FROM position_snapshots WHERE chain_id=$1 AND platform=$2`,
		int64(chainID), platform)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if block == nil {
		return 0, false, nil
	}
	return uint64(*block), true, nil
}

func (s *Store) send(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func poolArgs(p model.PoolRecord) []interface{} {
	return []interface{}{
		int64(p.ChainID),
		p.Platform,
		p.Address,
		p.Token0,
		p.Token1,
		int32(p.Fee),
		p.TickSpacing,
		int64(p.FirstSeenBlock),
	}
}

// positionArgs orders a record for the insert above. Amounts are stored as the
// decimal strings the record carries and cast by Postgres.
func positionArgs(r model.PositionRecord) ([]interface{}, error) {
	captured, err := time.Parse(time.RFC3339, r.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("position %s captured_at: %w", r.TokenID, err)
	}
	return []interface{}{
		int64(r.ChainID),
		r.Platform,
		int64(r.BlockNumber),
		r.TokenID,
		r.Holder,
		r.InVault,
		r.Pool,
		r.TickLower,
		r.TickUpper,
		r.Tick,
		numeric(r.Liquidity),
		r.Status,
		r.InRange,
		numeric(r.Amount0),
		numeric(r.Amount1),
		numeric(r.Fees0),
		numeric(r.Fees1),
		r.PriceCurrent,
		r.Error,
		captured,
	}, nil
}

func numeric(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
