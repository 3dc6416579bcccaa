package postgres

import (
	"context"
	"testing"
	"time"

	"liquidityDesk/internal/model"
)

func TestPositionArgs(t *testing.T) {
	rec := model.PositionRecord{
		ChainID:     1,
		Platform:    "uniswap-v3",
		BlockNumber: 19_000_000,
		TokenID:     "42",
		Holder:      "0x00000000000000000000000000000000000000b0",
		InVault:     true,
		TickLower:   -60,
		TickUpper:   60,
		Amount0:     "1.5",
		CapturedAt:  "2023-11-14T22:13:20Z",
	}
	args, err := positionArgs(rec)
	if err != nil {
		t.Fatalf("positionArgs: %v", err)
	}
	if len(args) != 20 {
		t.Fatalf("expected 20 args, got %d", len(args))
	}
	if args[3] != "42" || args[5] != true {
		t.Fatalf("unexpected args: %v", args)
	}
	if args[10] != "0" || args[13] != "1.5" {
		t.Fatalf("numeric columns: liquidity=%v amount0=%v", args[10], args[13])
	}
	if got := args[19].(time.Time); !got.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("captured_at: %v", got)
	}
}

func TestPositionArgsRejectsBadTimestamp(t *testing.T) {
	if _, err := positionArgs(model.PositionRecord{TokenID: "1", CapturedAt: "yesterday"}); err == nil {
		t.Fatalf("expected error for bad timestamp")
	}
}

func TestPositionRowsSkipUnresolvedRecords(t *testing.T) {
	captured := "2023-11-14T22:13:20Z"
	records := []model.PositionRecord{
		{TokenID: "7", CapturedAt: captured},
		{Holder: "0x00000000000000000000000000000000000000b0", Error: "tokenOfOwnerByIndex(1): rpc failure", CapturedAt: captured},
	}
	rows, err := positionRows(records)
	if err != nil {
		t.Fatalf("positionRows: %v", err)
	}
	if len(rows) != 1 || rows[0][3] != "7" {
		t.Fatalf("expected only token 7, got %v", rows)
	}
}

func TestInsertPartialSnapshotWithoutTokenIDs(t *testing.T) {
	records := []model.PositionRecord{{Error: "rpc failure", CapturedAt: "2023-11-14T22:13:20Z"}}
	n, err := (&Store{}).InsertPositionSnapshots(context.Background(), records)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rows written, got %d", n)
	}
}

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
