package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

// Vault is a contract address known to hold positions on behalf of others.
type Vault struct {
	ChainID uint64
	Address common.Address
	Label   string
	AddedAt time.Time
}

// VaultStore keeps the vault registry in a local SQLite file.
type VaultStore struct {
	db *sql.DB
}

func OpenVaultStore(path string) (*VaultStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create vault db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vaults (
			chain_id INTEGER NOT NULL,
			address TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (chain_id, address)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create vaults table: %w", err)
	}

	return &VaultStore{db: db}, nil
}

func (s *VaultStore) Close() error {
	return s.db.Close()
}

// Add registers a vault, replacing the label if it is already known.
func (s *VaultStore) Add(ctx context.Context, chainID uint64, address common.Address, label string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vaults (chain_id, address, label) VALUES (?, ?, ?)
		 ON CONFLICT (chain_id, address) DO UPDATE SET label = excluded.label`,
		int64(chainID), key(address), strings.TrimSpace(label),
	)
	return err
}

// Remove deletes a vault and reports whether it existed.
func (s *VaultStore) Remove(ctx context.Context, chainID uint64, address common.Address) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM vaults WHERE chain_id = ? AND address = ?",
		int64(chainID), key(address),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns the vaults of a chain ordered by address.
func (s *VaultStore) List(ctx context.Context, chainID uint64) ([]Vault, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT address, label, added_at FROM vaults WHERE chain_id = ? ORDER BY address",
		int64(chainID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vaults []Vault
	for rows.Next() {
		var (
			address string
			v       = Vault{ChainID: chainID}
		)
		if err := rows.Scan(&address, &v.Label, &v.AddedAt); err != nil {
			return nil, err
		}
		v.Address = common.HexToAddress(address)
		vaults = append(vaults, v)
	}
	return vaults, rows.Err()
}

// Contains reports whether address is a registered vault on chainID.
func (s *VaultStore) Contains(ctx context.Context, chainID uint64, address common.Address) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM vaults WHERE chain_id = ? AND address = ?",
		int64(chainID), key(address),
	).Scan(&n)
	return n > 0, err
}

// Set loads the vaults of a chain into a lookup func for tagging snapshot records.
func (s *VaultStore) Set(ctx context.Context, chainID uint64) (func(common.Address) bool, error) {
	vaults, err := s.List(ctx, chainID)
	if err != nil {
		return nil, err
	}
	set := make(map[common.Address]struct{}, len(vaults))
	for _, v := range vaults {
		set[v.Address] = struct{}{}
	}
	return func(addr common.Address) bool {
		_, ok := set[addr]
		return ok
	}, nil
}

// key normalizes addresses so checksummed and lowercase input collide.
func key(address common.Address) string {
	return strings.ToLower(address.Hex())
}
