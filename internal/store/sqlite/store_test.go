package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"arbiter/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	st, err := NewSqliteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOwnershipRepoRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	uow, err := st.Begin(ctx)
	require.NoError(t, err)

	row, err := uow.Ownership().FindByTicker(ctx, "NVDA")
	require.NoError(t, err)
	assert.Nil(t, row, "missing ticker returns (nil, nil)")

	require.NoError(t, uow.Ownership().Save(ctx, &model.PositionOwnershipModel{
		Ticker:           "nvda",
		OwningStrategyID: "long_term",
		OwnershipType:    model.OwnershipPrimary,
	}))
	require.NoError(t, uow.Commit())

	uow, err = st.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	row, err = uow.Ownership().FindByTicker(ctx, "NVDA")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "NVDA", row.Ticker, "tickers are normalized on save")
	assert.Equal(t, "long_term", row.OwningStrategyID)
	assert.True(t, row.LockedUntil().IsZero())
}

func TestRollbackDiscardsOwnershipAndLogTogether(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	uow, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Ownership().Save(ctx, &model.PositionOwnershipModel{
		Ticker:           "TSLA",
		OwningStrategyID: "trading",
		OwnershipType:    model.OwnershipPrimary,
	}))
	require.NoError(t, uow.Conflicts().Append(ctx, &model.ConflictLogModel{
		Ticker:               "TSLA",
		RequestingStrategyID: "trading",
		Resolution:           "allowed",
	}))
	require.NoError(t, uow.Rollback())

	uow, err = st.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	row, err := uow.Ownership().FindByTicker(ctx, "TSLA")
	require.NoError(t, err)
	assert.Nil(t, row)
	entries, err := uow.Conflicts().ListRecent(ctx, "TSLA", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStrategyRepoUpsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	uow, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Strategies().Upsert(ctx, &model.StrategyModel{
		ID: "trading", Name: "Trading", Priority: 50, TimeHorizon: "short", IsActive: true,
	}))
	require.NoError(t, uow.Strategies().Upsert(ctx, &model.StrategyModel{
		ID: "trading", Name: "Trading", Priority: 60, TimeHorizon: "short", IsActive: true,
	}))
	require.NoError(t, uow.Commit())

	uow, err = st.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	rows, err := uow.Strategies().List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 60, rows[0].Priority)
}
