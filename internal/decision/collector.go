package decision

import (
	"context"
	"strings"
	"time"

	"arbiter/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Snapshot 是一轮决策周期内所有来源共享的只读输入。
type Snapshot struct {
	Symbol    string
	Portfolio PortfolioState
	Context   string // free-form market context handed to reasoning sources
}

// Source 是一个独立的专家意见来源。Evaluate 必须无副作用。
type Source interface {
	ID() string
	Evaluate(ctx context.Context, snap Snapshot) (Opinion, error)
}

// Collector runs all sources in parallel over the same snapshot and joins at
// a barrier. A source that times out or fails contributes an empty opinion
// with confidence=0 and weight=0 instead of blocking the cycle.
type Collector struct {
	Sources       []Source
	SourceTimeout time.Duration
}

// Collect 并行执行全部来源并在屏障处汇合，结果顺序与 Sources 一致。
func (c *Collector) Collect(ctx context.Context, snap Snapshot) []Opinion {
	if len(c.Sources) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := c.SourceTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	results := make([]Opinion, len(c.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, src := range c.Sources {
		i, src := i, src
		eg.Go(func() error {
			srcCtx, cancel := context.WithTimeout(egCtx, timeout)
			defer cancel()
			start := time.Now()
			op, err := src.Evaluate(srcCtx, snap)
			if err != nil {
				logger.Warnf("[collect] source %s failed after %s: %v", src.ID(), time.Since(start).Truncate(time.Millisecond), err)
				results[i] = Opinion{SourceID: src.ID(), Direction: DirectionHold}
				return nil
			}
			op.SourceID = src.ID()
			results[i] = sanitizeOpinion(op)
			return nil
		})
	}
	// Sources never propagate errors, so Wait only observes ctx cancellation.
	_ = eg.Wait()
	return results
}

// sanitizeOpinion 把越界数值钳回合法区间，避免单个来源破坏聚合输入。
func sanitizeOpinion(o Opinion) Opinion {
	o.Confidence = clamp01(o.Confidence)
	o.Weight = clamp01(o.Weight)
	o.ProposedSizePct = clamp01(o.ProposedSizePct)
	if NormalizeDirection(string(o.Direction)) == "" {
		o.Direction = DirectionHold
		o.Weight = 0
	}
	if strings.TrimSpace(string(o.RiskLevel)) == "" {
		o.RiskLevel = RiskHigh
	}
	return o
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
