package verdictlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"arbiter/internal/decision"

	_ "modernc.org/sqlite"
)

// 中文说明：
// VerdictLogStore 管理裁决审计日志。只追加，写入成功后才向调用方返回
// 裁决结果（write-before-respond）。

type VerdictLogStore struct {
	mu     sync.Mutex
	db     *sql.DB
	ownsDB bool
}

// Query 用于筛选裁决记录。
type Query struct {
	Symbol string
	Action string
	Limit  int
	Offset int
}

const verdictSchema = `
CREATE TABLE IF NOT EXISTS verdicts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trace_id TEXT NOT NULL,
    ts INTEGER NOT NULL,
    symbol TEXT NOT NULL,
    final_action TEXT NOT NULL,
    direction TEXT,
    size_pct REAL,
    confidence REAL,
    autonomy TEXT,
    violations TEXT,
    reasoning TEXT NOT NULL,
    rule_set_version INTEGER
);
CREATE INDEX IF NOT EXISTS idx_verdicts_symbol_ts ON verdicts(symbol, ts DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_verdicts_trace ON verdicts(trace_id);
`

func NewVerdictLogStore(path string) (*VerdictLogStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("verdict log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &VerdictLogStore{db: db, ownsDB: true}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewVerdictLogStoreFromDB 供测试注入内存库。
func NewVerdictLogStoreFromDB(db *sql.DB) (*VerdictLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	s := &VerdictLogStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VerdictLogStore) migrate() error {
	_, err := s.db.Exec(verdictSchema)
	return err
}

func (s *VerdictLogStore) Close() error {
	if s.db == nil || !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Append 追加一条裁决记录；重复 trace_id 视为幂等成功。
func (s *VerdictLogStore) Append(ctx context.Context, v decision.Verdict) error {
	violations, err := json.Marshal(v.Violations)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO verdicts (trace_id, ts, symbol, final_action, direction, size_pct, confidence, autonomy, violations, reasoning, rule_set_version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(trace_id) DO NOTHING`,
		v.TraceID, v.CreatedAt.UnixMilli(), v.Symbol, string(v.FinalAction), string(v.Direction),
		v.SizePct, v.Confidence, string(v.ExecutionAutonomy), string(violations), v.Reasoning, v.RuleSetVersion)
	return err
}

// List 按时间倒序返回裁决记录。
func (s *VerdictLogStore) List(ctx context.Context, q Query) ([]decision.Verdict, error) {
	where := []string{"1=1"}
	args := []any{}
	if sym := strings.ToUpper(strings.TrimSpace(q.Symbol)); sym != "" {
		where = append(where, "symbol = ?")
		args = append(args, sym)
	}
	if act := strings.ToLower(strings.TrimSpace(q.Action)); act != "" {
		where = append(where, "final_action = ?")
		args = append(args, act)
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT trace_id, ts, symbol, final_action, direction, size_pct, confidence, autonomy, violations, reasoning, rule_set_version
FROM verdicts WHERE %s ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`, strings.Join(where, " AND ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVerdicts(rows)
}

// GetByTrace 按 trace_id 查询单条裁决。
func (s *VerdictLogStore) GetByTrace(ctx context.Context, traceID string) (decision.Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT trace_id, ts, symbol, final_action, direction, size_pct, confidence, autonomy, violations, reasoning, rule_set_version
FROM verdicts WHERE trace_id = ?`, strings.TrimSpace(traceID))
	if err != nil {
		return decision.Verdict{}, err
	}
	defer rows.Close()
	out, err := scanVerdicts(rows)
	if err != nil {
		return decision.Verdict{}, err
	}
	if len(out) == 0 {
		return decision.Verdict{}, sql.ErrNoRows
	}
	return out[0], nil
}

func unixMilli(ts int64) time.Time {
	return time.UnixMilli(ts).UTC()
}

func scanVerdicts(rows *sql.Rows) ([]decision.Verdict, error) {
	var out []decision.Verdict
	for rows.Next() {
		var (
			v          decision.Verdict
			ts         int64
			action     string
			direction  string
			autonomy   string
			violations string
		)
		if err := rows.Scan(&v.TraceID, &ts, &v.Symbol, &action, &direction, &v.SizePct,
			&v.Confidence, &autonomy, &violations, &v.Reasoning, &v.RuleSetVersion); err != nil {
			return nil, err
		}
		v.FinalAction = decision.Action(action)
		v.Direction = decision.Direction(direction)
		v.ExecutionAutonomy = decision.Autonomy(autonomy)
		v.CreatedAt = unixMilli(ts)
		if violations != "" && violations != "null" {
			if err := json.Unmarshal([]byte(violations), &v.Violations); err != nil {
				return nil, err
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
