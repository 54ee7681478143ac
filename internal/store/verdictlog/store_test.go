package verdictlog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"arbiter/internal/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *VerdictLogStore {
	t.Helper()
	s, err := NewVerdictLogStore(filepath.Join(t.TempDir(), "verdicts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleVerdict(trace, symbol string, action decision.Action) decision.Verdict {
	return decision.Verdict{
		TraceID:           trace,
		Symbol:            symbol,
		FinalAction:       action,
		Direction:         decision.DirectionBuy,
		SizePct:           0.1,
		Confidence:        0.8,
		ExecutionAutonomy: decision.AutonomyManual,
		Violations:        []string{"portfolio risk 50.00%+20.00% exceeds max 60.00%"},
		Reasoning:         "hard rules v1 violated",
		RuleSetVersion:    1,
		CreatedAt:         time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestAppendAndGetByTrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := sampleVerdict("trace-1", "NVDA", decision.ActionReject)
	require.NoError(t, s.Append(ctx, want))

	got, err := s.GetByTrace(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, want.Symbol, got.Symbol)
	assert.Equal(t, want.FinalAction, got.FinalAction)
	assert.Equal(t, want.Violations, got.Violations)
	assert.Equal(t, want.Reasoning, got.Reasoning)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	_, err = s.GetByTrace(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAppendDuplicateTraceIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := sampleVerdict("trace-dup", "NVDA", decision.ActionApprove)
	require.NoError(t, s.Append(ctx, v))
	require.NoError(t, s.Append(ctx, v))

	out, err := s.List(ctx, Query{Symbol: "NVDA"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sampleVerdict("t1", "NVDA", decision.ActionApprove)))
	require.NoError(t, s.Append(ctx, sampleVerdict("t2", "NVDA", decision.ActionSilence)))
	require.NoError(t, s.Append(ctx, sampleVerdict("t3", "TSLA", decision.ActionApprove)))

	out, err := s.List(ctx, Query{Symbol: "nvda"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = s.List(ctx, Query{Action: "approve"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = s.List(ctx, Query{Symbol: "TSLA", Action: "silence"})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
