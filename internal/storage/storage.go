package storage

import "liquidityDesk/internal/model"

// Storage defines a sink for position snapshots.
type Storage interface {
	PutPositions(records []model.PositionRecord) error
	PutPools(records []model.PoolRecord) error
}
