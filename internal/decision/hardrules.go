package decision

import "fmt"

// Hard Rules are code-enforced safety bounds. They are evaluated as pure
// functions over an immutable HardRuleSet: no I/O, no ambient state, and no
// model output can override a failure.

// RuleReport collects the outcome of one full hard-rule pass. All rules are
// evaluated independently so the caller always sees the complete violation
// list, not just the first hit.
type RuleReport struct {
	Passed     bool
	Violations []string
	// ExtremeRisk 标记规则 5 命中，供告警链路判定，不依赖违规文案。
	ExtremeRisk bool
}

// RiskSizer 估算新仓位对组合风险占用的边际贡献（规则 2 的可插拔部分）。
type RiskSizer interface {
	MarginalRiskPct(opinions []Opinion, portfolio PortfolioState) float64
}

// DefaultRiskSizer scales the risk-bearing opinion's proposed size by a
// factor per risk level.
type DefaultRiskSizer struct{}

func (DefaultRiskSizer) MarginalRiskPct(opinions []Opinion, _ PortfolioState) float64 {
	bearer, ok := RiskBearingOpinion(opinions)
	if !ok {
		return 0
	}
	factor := 1.0
	switch bearer.RiskLevel {
	case RiskLow:
		factor = 0.5
	case RiskMedium:
		factor = 1.0
	case RiskHigh:
		factor = 1.5
	case RiskExtreme:
		factor = 2.0
	}
	return bearer.ProposedSizePct * factor
}

// RiskBearingOpinion 返回风险评级最高的意见；并列时取权重更大者。
func RiskBearingOpinion(opinions []Opinion) (Opinion, bool) {
	best := Opinion{}
	found := false
	for _, o := range opinions {
		if o.Weight <= 0 {
			continue
		}
		if !found || riskRank(o.RiskLevel) > riskRank(best.RiskLevel) ||
			(riskRank(o.RiskLevel) == riskRank(best.RiskLevel) && o.Weight > best.Weight) {
			best = o
			found = true
		}
	}
	return best, found
}

func riskRank(level RiskLevel) int {
	switch level {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskExtreme:
		return 3
	default:
		return 2
	}
}

// ValidateHardRules 执行全部硬性规则并收集所有违规信息。
func ValidateHardRules(opinions []Opinion, portfolio PortfolioState, marginalRiskPct float64, rules HardRuleSet) RuleReport {
	report := RuleReport{Passed: true}
	fail := func(format string, v ...any) {
		report.Passed = false
		report.Violations = append(report.Violations, fmt.Sprintf(format, v...))
	}

	if bearer, ok := RiskBearingOpinion(opinions); ok {
		if bearer.ProposedSizePct > rules.MaxPositionSizePct {
			fail("position size %.2f%% exceeds max %.2f%% (source=%s)",
				bearer.ProposedSizePct*100, rules.MaxPositionSizePct*100, bearer.SourceID)
		}
	}

	if projected := portfolio.RiskUsedPct + marginalRiskPct; projected > rules.MaxPortfolioRiskPct {
		fail("portfolio risk %.2f%%+%.2f%% exceeds max %.2f%%",
			portfolio.RiskUsedPct*100, marginalRiskPct*100, rules.MaxPortfolioRiskPct*100)
	}

	if disagreement := DisagreementPct(opinions); disagreement > rules.MaxDirectionalDisagreementPct {
		fail("directional disagreement %.0f%% exceeds max %.0f%%",
			disagreement*100, rules.MaxDirectionalDisagreementPct*100)
	}

	if rules.StopLossRequired {
		for _, o := range opinions {
			if o.Weight <= 0 || o.Direction == DirectionHold {
				continue
			}
			if !o.StopLossSet {
				fail("stop loss required but not set (source=%s direction=%s)", o.SourceID, o.Direction)
			}
		}
	}

	if rules.RejectOnExtremeRisk {
		for _, o := range opinions {
			if o.Weight <= 0 {
				continue
			}
			if o.RiskLevel == RiskExtreme {
				report.ExtremeRisk = true
				fail("extreme risk flagged by %s", o.SourceID)
			}
		}
	}

	return report
}
