package store

import (
	"context"

	"arbiter/internal/store/model"
)

// UnitOfWork defines a transaction scope. Ownership mutation and its conflict
// log entry always commit or roll back together.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error

	// Ownership returns the ownership repository within this transaction.
	Ownership() OwnershipRepository
	// Conflicts returns the conflict log repository within this transaction.
	Conflicts() ConflictRepository
	// Strategies returns the strategy repository within this transaction.
	Strategies() StrategyRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// OwnershipRepository handles position ownership rows.
type OwnershipRepository interface {
	FindByTicker(ctx context.Context, ticker string) (*model.PositionOwnershipModel, error)
	Save(ctx context.Context, row *model.PositionOwnershipModel) error
	DeleteByTicker(ctx context.Context, ticker string) error
	List(ctx context.Context) ([]model.PositionOwnershipModel, error)
}

// ConflictRepository handles the append-only conflict log.
type ConflictRepository interface {
	Append(ctx context.Context, entry *model.ConflictLogModel) error
	ListRecent(ctx context.Context, ticker string, limit int) ([]model.ConflictLogModel, error)
}

// StrategyRepository persists the strategy catalog.
type StrategyRepository interface {
	Upsert(ctx context.Context, s *model.StrategyModel) error
	List(ctx context.Context) ([]model.StrategyModel, error)
}
