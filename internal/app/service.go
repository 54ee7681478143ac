package app

import (
	"context"
	"fmt"
	"strings"

	"arbiter/internal/decision"
	"arbiter/internal/notifier"
	"arbiter/internal/ownership"
	"arbiter/internal/registry"
	"arbiter/internal/store/verdictlog"
)

// 中文说明：
// Service 是仲裁的对外门面：意见聚合产出 Verdict，归属检查产出 Resolution。
// 两条路径都遵循 write-before-respond：审计日志落盘成功之前不返回结果。

type Service struct {
	Aggregator *decision.Aggregator
	Collector  *decision.Collector
	Verdicts   *verdictlog.VerdictLogStore
	Detector   *ownership.Detector
	Registry   *registry.Registry
	Emitter    *notifier.Emitter
	Rules      decision.HardRuleSet
}

// Decide 执行一次完整的意见仲裁。请求未携带意见时，由并行采集器向全部
// 配置的专家来源取意见。
func (s *Service) Decide(ctx context.Context, req decision.Request) (decision.Verdict, error) {
	if len(req.Opinions) == 0 && s.Collector != nil && len(s.Collector.Sources) > 0 {
		req.Opinions = s.Collector.Collect(ctx, decision.Snapshot{
			Symbol:    req.Symbol,
			Portfolio: req.Portfolio,
		})
	}
	verdict, err := s.Aggregator.Decide(ctx, req, s.Rules)
	if err != nil {
		return decision.Verdict{}, err
	}
	if s.Verdicts != nil {
		if err := s.Verdicts.Append(ctx, verdict); err != nil {
			return decision.Verdict{}, fmt.Errorf("persist verdict failed: %w", err)
		}
	}
	if verdict.FinalAction == decision.ActionReject && verdict.ExtremeRisk && s.Emitter != nil {
		s.Emitter.Emit(notifier.Event{
			Type:               "extreme_risk_reject",
			Ticker:             verdict.Symbol,
			StrategiesInvolved: involvedStrategies(req.RequestingStrategyID),
			Reasoning:          verdict.Reasoning,
			OccurredAt:         verdict.CreatedAt,
		})
	}
	return verdict, nil
}

// CheckOwnership 对已批准的下单意图做跨策略归属仲裁。
func (s *Service) CheckOwnership(ctx context.Context, req ownership.Request) (ownership.Resolution, error) {
	res, err := s.Detector.Check(ctx, req)
	if err != nil {
		return ownership.Resolution{}, err
	}
	if res.Outcome == ownership.OutcomeOverride && s.Emitter != nil {
		s.Emitter.Emit(notifier.Event{
			Type:               "priority_override",
			Ticker:             res.Ticker,
			StrategiesInvolved: involvedStrategies(res.RequestingStrategyID, res.PriorOwnerID),
			Reasoning:          res.Reasoning,
		})
	}
	return res, nil
}

func involvedStrategies(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
