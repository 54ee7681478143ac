package ownership

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"arbiter/internal/logger"
	"arbiter/internal/registry"
	"arbiter/internal/store"
	"arbiter/internal/store/model"
)

// Outcome 是冲突仲裁的终态。
type Outcome string

const (
	OutcomeAllow    Outcome = "allowed"
	OutcomeBlock    Outcome = "blocked"
	OutcomeOverride Outcome = "priority_override"
)

// Request 是一次归属检查请求（来自下单层，Verdict 批准之后）。
type Request struct {
	Ticker     string  `json:"ticker"`
	StrategyID string  `json:"strategy_id"`
	Action     string  `json:"action"`
	Quantity   float64 `json:"quantity"`
}

// Resolution 是一次归属检查的结果。PriorOwnerID 仅在 priority_override
// 时有值，记录被剥夺归属的策略。
type Resolution struct {
	Outcome              Outcome    `json:"outcome"`
	Ticker               string     `json:"ticker"`
	RequestingStrategyID string     `json:"requesting_strategy_id"`
	OwningStrategyID     string     `json:"owning_strategy_id,omitempty"`
	PriorOwnerID         string     `json:"prior_owner_id,omitempty"`
	RequestingPriority   int        `json:"requesting_priority"`
	OwningPriority       int        `json:"owning_priority,omitempty"`
	Blocked              bool       `json:"blocked"`
	LockedUntil          *time.Time `json:"locked_until,omitempty"`
	Reasoning            string     `json:"reasoning"`
}

// Detector 执行跨策略归属仲裁。状态检查与归属变更在同一个 ticker 级
// 互斥区 + 同一个数据库事务内完成，两个并发请求不可能都观察到 no_owner。
type Detector struct {
	store      store.Store
	registry   *registry.Registry
	lockWindow time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// NewDetector 构造冲突检测器。lockWindow > 0 时，新建或转移的归属
// 会带一个到期时间戳，窗口内低优先级策略无法夺走该 ticker。
func NewDetector(st store.Store, reg *registry.Registry, lockWindow time.Duration) *Detector {
	return &Detector{
		store:      st,
		registry:   reg,
		lockWindow: lockWindow,
		locks:      make(map[string]*sync.Mutex),
		now:        time.Now,
	}
}

func (d *Detector) tickerLock(ticker string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		d.locks[ticker] = l
	}
	return l
}

// Check 对一个下单意图做归属仲裁。每次调用恰好追加一条冲突日志，
// 与任何归属变更同事务提交；写入成功后才返回结果。
func (d *Detector) Check(ctx context.Context, req Request) (Resolution, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return Resolution{}, fmt.Errorf("ownership check requires ticker")
	}
	req.Ticker = ticker
	req.StrategyID = strings.TrimSpace(req.StrategyID)
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))

	lock := d.tickerLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	uow, err := d.store.Begin(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("begin ownership transaction failed: %w", err)
	}
	res, err := d.arbitrate(ctx, uow, req)
	if err != nil {
		uow.Rollback()
		return Resolution{}, err
	}
	if err := uow.Commit(); err != nil {
		return Resolution{}, fmt.Errorf("commit ownership arbitration failed: %w", err)
	}
	logger.Infof("ownership %s: %s by %s on %s (%s)", res.Outcome, req.Action, req.StrategyID, ticker, res.Reasoning)
	return res, nil
}

func (d *Detector) arbitrate(ctx context.Context, uow store.UnitOfWork, req Request) (Resolution, error) {
	now := d.now()
	res := Resolution{
		Ticker:               req.Ticker,
		RequestingStrategyID: req.StrategyID,
	}

	requester, registered := d.registry.Get(req.StrategyID)
	if registered {
		res.RequestingPriority = requester.Priority
	}

	row, err := uow.Ownership().FindByTicker(ctx, req.Ticker)
	if err != nil {
		return Resolution{}, fmt.Errorf("ownership lookup failed: %w", err)
	}
	var owner registry.Strategy
	if row != nil {
		res.OwningStrategyID = row.OwningStrategyID
		owner, _ = d.registry.Get(row.OwningStrategyID)
		res.OwningPriority = owner.Priority
	}

	switch {
	case !registered || !requester.IsActive:
		res.Outcome = OutcomeBlock
		res.Blocked = true
		res.Reasoning = fmt.Sprintf("invalid strategy: %q is not registered and active", req.StrategyID)

	case row == nil:
		// 首个批准订单落地：请求方成为 primary 拥有者。
		res.Outcome = OutcomeAllow
		res.Reasoning = fmt.Sprintf("no contention: %s takes primary ownership of %s", req.StrategyID, req.Ticker)
		fresh := &model.PositionOwnershipModel{
			Ticker:           req.Ticker,
			OwningStrategyID: req.StrategyID,
			OwnershipType:    model.OwnershipPrimary,
			Reasoning:        res.Reasoning,
		}
		if d.lockWindow > 0 {
			until := now.Add(d.lockWindow)
			unix := until.Unix()
			fresh.LockedUntilUnix = &unix
			res.LockedUntil = &until
		}
		if err := uow.Ownership().Save(ctx, fresh); err != nil {
			return Resolution{}, fmt.Errorf("record ownership failed: %w", err)
		}
		res.OwningStrategyID = req.StrategyID
		res.OwningPriority = requester.Priority

	case row.OwningStrategyID == req.StrategyID:
		res.Outcome = OutcomeAllow
		res.Reasoning = fmt.Sprintf("%s already owns %s", req.StrategyID, req.Ticker)

	case row.LockedUntil().After(now):
		res.Outcome = OutcomeBlock
		res.Blocked = true
		lockedUntil := row.LockedUntil()
		res.LockedUntil = &lockedUntil
		res.Reasoning = fmt.Sprintf("%s is locked by %s until %s", req.Ticker, row.OwningStrategyID, lockedUntil.UTC().Format(time.RFC3339))

	case requester.Priority > owner.Priority:
		res.Outcome = OutcomeOverride
		res.PriorOwnerID = row.OwningStrategyID
		res.Reasoning = fmt.Sprintf("priority override: %s (priority %d) takes %s from %s (priority %d)",
			req.StrategyID, requester.Priority, req.Ticker, row.OwningStrategyID, owner.Priority)
		row.OwningStrategyID = req.StrategyID
		row.OwnershipType = model.OwnershipPrimary
		row.Reasoning = res.Reasoning
		row.LockedUntilUnix = nil
		if d.lockWindow > 0 {
			until := now.Add(d.lockWindow)
			unix := until.Unix()
			row.LockedUntilUnix = &unix
			res.LockedUntil = &until
		}
		if err := uow.Ownership().Save(ctx, row); err != nil {
			return Resolution{}, fmt.Errorf("transfer ownership failed: %w", err)
		}
		res.OwningStrategyID = req.StrategyID
		res.OwningPriority = requester.Priority

	default:
		res.Outcome = OutcomeBlock
		res.Blocked = true
		res.Reasoning = fmt.Sprintf("insufficient priority: req %d <= own %d held by %s",
			requester.Priority, owner.Priority, row.OwningStrategyID)
	}

	if err := d.appendLog(ctx, uow, req, res, now); err != nil {
		return Resolution{}, err
	}
	return res, nil
}

func (d *Detector) appendLog(ctx context.Context, uow store.UnitOfWork, req Request, res Resolution, now time.Time) error {
	ctxJSON, err := json.Marshal(map[string]any{
		"action":   req.Action,
		"quantity": req.Quantity,
	})
	if err != nil {
		return err
	}
	owningID := res.OwningStrategyID
	if res.Outcome == OutcomeOverride {
		owningID = res.PriorOwnerID
	}
	entry := &model.ConflictLogModel{
		Ticker:               req.Ticker,
		RequestingStrategyID: req.StrategyID,
		OwningStrategyID:     owningID,
		RequestingPriority:   res.RequestingPriority,
		OwningPriority:       res.OwningPriority,
		ActionAttempted:      req.Action,
		Blocked:              res.Blocked,
		Resolution:           string(res.Outcome),
		Reasoning:            res.Reasoning,
		ContextJSON:          ctxJSON,
		CreatedAtUnix:        now.Unix(),
	}
	if res.Outcome == OutcomeOverride {
		entry.OwningPriority = ownerPriorityForLog(d.registry, res.PriorOwnerID)
	}
	if err := uow.Conflicts().Append(ctx, entry); err != nil {
		return fmt.Errorf("append conflict log failed: %w", err)
	}
	return nil
}

func ownerPriorityForLog(reg *registry.Registry, strategyID string) int {
	s, _ := reg.Get(strategyID)
	return s.Priority
}

// Release 由当前拥有者主动放弃 ticker 的归属。非拥有者调用会被拒绝。
func (d *Detector) Release(ctx context.Context, ticker, strategyID, reason string) (Resolution, error) {
	return d.relinquish(ctx, ticker, strategyID, "release", reason)
}

// Close 在持仓完全平掉后删除归属行。语义上与 Release 相同，但审计日志
// 里区分动作，便于对账。
func (d *Detector) Close(ctx context.Context, ticker, strategyID, reason string) (Resolution, error) {
	return d.relinquish(ctx, ticker, strategyID, "close", reason)
}

func (d *Detector) relinquish(ctx context.Context, ticker, strategyID, action, reason string) (Resolution, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	strategyID = strings.TrimSpace(strategyID)
	if ticker == "" {
		return Resolution{}, fmt.Errorf("ownership %s requires ticker", action)
	}

	lock := d.tickerLock(ticker)
	lock.Lock()
	defer lock.Unlock()

	uow, err := d.store.Begin(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("begin ownership transaction failed: %w", err)
	}
	now := d.now()
	res := Resolution{
		Ticker:               ticker,
		RequestingStrategyID: strategyID,
	}
	if s, ok := d.registry.Get(strategyID); ok {
		res.RequestingPriority = s.Priority
	}

	row, err := uow.Ownership().FindByTicker(ctx, ticker)
	if err != nil {
		uow.Rollback()
		return Resolution{}, fmt.Errorf("ownership lookup failed: %w", err)
	}
	switch {
	case row == nil:
		// 幂等：重复 release/close 不报错。
		res.Outcome = OutcomeAllow
		res.Reasoning = fmt.Sprintf("no ownership row for %s, nothing to %s", ticker, action)
	case row.OwningStrategyID != strategyID:
		res.Outcome = OutcomeBlock
		res.Blocked = true
		res.OwningStrategyID = row.OwningStrategyID
		res.OwningPriority = ownerPriorityForLog(d.registry, row.OwningStrategyID)
		res.Reasoning = fmt.Sprintf("only owner %s may %s %s", row.OwningStrategyID, action, ticker)
	default:
		if err := uow.Ownership().DeleteByTicker(ctx, ticker); err != nil {
			uow.Rollback()
			return Resolution{}, fmt.Errorf("delete ownership failed: %w", err)
		}
		res.Outcome = OutcomeAllow
		res.OwningStrategyID = strategyID
		res.OwningPriority = res.RequestingPriority
		if reason == "" {
			reason = action + " requested by owner"
		}
		res.Reasoning = fmt.Sprintf("%s released %s: %s", strategyID, ticker, reason)
	}

	if err := d.appendLog(ctx, uow, Request{Ticker: ticker, StrategyID: strategyID, Action: action}, res, now); err != nil {
		uow.Rollback()
		return Resolution{}, err
	}
	if err := uow.Commit(); err != nil {
		return Resolution{}, fmt.Errorf("commit ownership %s failed: %w", action, err)
	}
	logger.Infof("ownership %s: %s on %s by %s", res.Outcome, action, ticker, strategyID)
	return res, nil
}

// List 返回当前全部归属行。
func (d *Detector) List(ctx context.Context) ([]model.PositionOwnershipModel, error) {
	uow, err := d.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := uow.Ownership().List(ctx)
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ConflictHistory 返回最近的冲突日志（ticker 为空则不过滤）。
func (d *Detector) ConflictHistory(ctx context.Context, ticker string, limit int) ([]model.ConflictLogModel, error) {
	uow, err := d.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := uow.Conflicts().ListRecent(ctx, ticker, limit)
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}
