package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"arbiter/internal/logger"

	"github.com/google/uuid"
)

// TieBreakRequest carries everything the external reasoner needs to break a
// directional tie: the symbol, each opinion's rationale and the portfolio
// context.
type TieBreakRequest struct {
	Symbol    string
	Opinions  []Opinion
	Portfolio PortfolioState
}

// TieBreak is the validated structured answer of the reasoner.
type TieBreak struct {
	Direction  Direction
	Confidence float64
	Reasoning  string
}

// TieBreaker asks the external reasoning collaborator for a directional
// tie-break. The second return is false on timeout, malformed output or any
// other failure: an explicit absence, never an error that aborts arbitration.
type TieBreaker interface {
	Break(ctx context.Context, req TieBreakRequest) (TieBreak, bool)
}

// Aggregator 将多个专家意见合成为一份可审计的裁决。
type Aggregator struct {
	Sizer           RiskSizer
	TieBreaker      TieBreaker
	MaxDisagreement float64 // bimodal silence ceiling, 0 disables

	now func() time.Time
}

// NewAggregator 构造聚合器；sizer 为空时使用默认风险估算。
func NewAggregator(sizer RiskSizer, tieBreaker TieBreaker, maxDisagreement float64) *Aggregator {
	if sizer == nil {
		sizer = DefaultRiskSizer{}
	}
	return &Aggregator{
		Sizer:           sizer,
		TieBreaker:      tieBreaker,
		MaxDisagreement: maxDisagreement,
		now:             time.Now,
	}
}

// ValidateRuleSet 检查阈值是否构成有效的安全边界；失败属于配置错误，
// 本轮不产生任何裁决。
func ValidateRuleSet(rules HardRuleSet) error {
	var problems []string
	if rules.MaxPositionSizePct <= 0 || rules.MaxPositionSizePct > 1 {
		problems = append(problems, "max_position_size_pct must be in (0,1]")
	}
	if rules.MaxPortfolioRiskPct <= 0 || rules.MaxPortfolioRiskPct > 1 {
		problems = append(problems, "max_portfolio_risk_pct must be in (0,1]")
	}
	if rules.MinAvgConfidence < 0 || rules.MinAvgConfidence > 1 {
		problems = append(problems, "min_avg_confidence must be in [0,1]")
	}
	if rules.MaxDirectionalDisagreementPct < 0 || rules.MaxDirectionalDisagreementPct > 1 {
		problems = append(problems, "max_directional_disagreement_pct must be in [0,1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid hard rule set v%d: %s", rules.Version, strings.Join(problems, "; "))
	}
	return nil
}

// Decide 按固定顺序执行：置信度闸门 → 硬性规则 → 分歧闸门 → 风险-方向
// 仲裁 → （方向不一致时）外部 tie-break。每个分支都会留下可读的因果链。
func (a *Aggregator) Decide(ctx context.Context, req Request, rules HardRuleSet) (Verdict, error) {
	if err := ValidateRuleSet(rules); err != nil {
		return Verdict{}, err
	}
	base := Verdict{
		TraceID:        uuid.NewString(),
		Symbol:         strings.ToUpper(strings.TrimSpace(req.Symbol)),
		RuleSetVersion: rules.Version,
		CreatedAt:      a.now().UTC(),
	}
	opinions := req.Opinions
	if TotalWeight(opinions) == 0 {
		return a.silence(base, "no weighted opinions available"), nil
	}

	policy := SilencePolicy{MinAvgConfidence: rules.MinAvgConfidence, MaxDisagreement: a.MaxDisagreement}
	avgConfidence := WeightedConfidence(opinions)
	base.Confidence = avgConfidence

	// 证据不足永远表述为 silence，即便硬性规则同样会失败。
	if quiet, reason := policy.ConfidenceGate(opinions); quiet {
		return a.silence(base, reason), nil
	}

	marginal := a.Sizer.MarginalRiskPct(opinions, req.Portfolio)
	report := ValidateHardRules(opinions, req.Portfolio, marginal, rules)
	if !report.Passed {
		base.FinalAction = ActionReject
		base.Violations = report.Violations
		base.ExtremeRisk = report.ExtremeRisk
		base.Reasoning = fmt.Sprintf("hard rules v%d violated: %s", rules.Version, strings.Join(report.Violations, "; "))
		logger.Warnf("[decide] %s rejected trace=%s violations=%d", base.Symbol, base.TraceID, len(report.Violations))
		return base, nil
	}

	if quiet, reason := policy.BimodalGate(opinions); quiet {
		return a.silence(base, reason), nil
	}

	proposal, ok := directionProposal(opinions)
	if !ok {
		return a.silence(base, "majority favors hold: no directional proposal to act on"), nil
	}
	riskOpinion, _ := RiskBearingOpinion(opinions)
	resolved := ResolveRiskDirection(proposal, riskOpinion)

	trail := []string{
		fmt.Sprintf("hard rules v%d passed", rules.Version),
		fmt.Sprintf("weighted confidence %.2f >= %.2f", avgConfidence, rules.MinAvgConfidence),
		resolved.Reasoning,
	}

	if resolved.Action == ActionReject {
		base.FinalAction = ActionReject
		base.Violations = []string{resolved.Reasoning}
		base.Reasoning = strings.Join(trail, "; ")
		return base, nil
	}

	direction := resolved.Direction
	if !Unanimous(opinions) {
		tb, accepted := a.tieBreak(ctx, req)
		if !accepted {
			return a.silence(base, strings.Join(append(trail, "directions split and tie-break unavailable: insufficient evidence"), "; ")), nil
		}
		if tb.Direction == DirectionHold {
			return a.silence(base, strings.Join(append(trail, "tie-break recommends no action: "+tb.Reasoning), "; ")), nil
		}
		direction = tb.Direction
		trail = append(trail, fmt.Sprintf("tie-break chose %s (confidence %.2f): %s", tb.Direction, tb.Confidence, tb.Reasoning))
	}

	base.FinalAction = ActionApprove
	base.Direction = direction
	base.SizePct = resolved.SizePct
	base.ExecutionAutonomy = resolved.Autonomy
	base.Reasoning = strings.Join(trail, "; ")
	logger.Infof("[decide] %s approved trace=%s direction=%s size=%.2f%% autonomy=%s",
		base.Symbol, base.TraceID, direction, base.SizePct*100, base.ExecutionAutonomy)
	return base, nil
}

func (a *Aggregator) silence(base Verdict, reason string) Verdict {
	base.FinalAction = ActionSilence
	base.Reasoning = reason
	logger.Infof("[decide] %s silence trace=%s: %s", base.Symbol, base.TraceID, reason)
	return base
}

func (a *Aggregator) tieBreak(ctx context.Context, req Request) (TieBreak, bool) {
	if a.TieBreaker == nil {
		return TieBreak{}, false
	}
	return a.TieBreaker.Break(ctx, TieBreakRequest{
		Symbol:    req.Symbol,
		Opinions:  req.Opinions,
		Portfolio: req.Portfolio,
	})
}

// directionProposal 选出多数方向中置信度×权重最高的意见作为方向建议。
func directionProposal(opinions []Opinion) (Opinion, bool) {
	major, _ := MajorityDirection(opinions)
	best := Opinion{}
	found := false
	score := -1.0
	for _, o := range opinions {
		if o.Weight <= 0 || o.Direction != major {
			continue
		}
		if s := o.Confidence * o.Weight; s > score {
			best = o
			score = s
			found = true
		}
	}
	if !found || best.Direction == DirectionHold {
		return Opinion{}, false
	}
	return best, true
}
