package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTieBreaker struct {
	tb     TieBreak
	ok     bool
	called bool
}

func (s *stubTieBreaker) Break(context.Context, TieBreakRequest) (TieBreak, bool) {
	s.called = true
	return s.tb, s.ok
}

func defaultRules() HardRuleSet {
	return HardRuleSet{
		Version:                       1,
		MaxPositionSizePct:            0.25,
		MaxPortfolioRiskPct:           0.6,
		MinAvgConfidence:              0.55,
		MaxDirectionalDisagreementPct: 0.4,
		RejectOnExtremeRisk:           true,
	}
}

func TestDecideRejectsMalformedRuleSet(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.4)
	_, err := agg.Decide(context.Background(), Request{Symbol: "NVDA"}, HardRuleSet{Version: 3, MaxPositionSizePct: 1.5})
	// 配置错误：本轮不产生任何裁决。
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid hard rule set v3")
}

func TestDecideSilenceOnNoWeightedOpinions(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{
		Symbol:   "nvda",
		Opinions: []Opinion{{SourceID: "dead", Weight: 0}},
	}, defaultRules())
	require.NoError(t, err)
	assert.Equal(t, ActionSilence, verdict.FinalAction)
	assert.Equal(t, "NVDA", verdict.Symbol)
	assert.NotEmpty(t, verdict.TraceID)
}

// 极端风险一票否决：加权置信度与多数方向都支持 buy 也必须 reject。
func TestDecideExtremeRiskOverridesConfidentMajority(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{
		Symbol: "TSLA",
		Opinions: []Opinion{
			{SourceID: "a", Direction: DirectionBuy, Confidence: 0.9, Weight: 0.35, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
			{SourceID: "b", Direction: DirectionBuy, Confidence: 0.85, Weight: 0.30, RiskLevel: RiskExtreme, ProposedSizePct: 0.1, StopLossSet: true},
			{SourceID: "c", Direction: DirectionSell, Confidence: 0.6, Weight: 0.35, RiskLevel: RiskMedium, ProposedSizePct: 0.1, StopLossSet: true},
		},
	}, defaultRules())
	require.NoError(t, err)
	assert.Equal(t, ActionReject, verdict.FinalAction)
	require.NotEmpty(t, verdict.Violations)
	assert.Contains(t, verdict.Violations[0], "extreme risk")
	assert.True(t, verdict.ExtremeRisk)
	assert.Contains(t, verdict.Reasoning, "hard rules v1 violated")
}

// 证据不足永远是 silence，即便硬性规则同样会失败；两者不可同时出现。
func TestDecideLowConfidenceIsSilenceNotReject(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{
		Symbol: "AAPL",
		Opinions: []Opinion{
			// ProposedSizePct 越界，若先跑硬性规则会 reject。
			{SourceID: "a", Direction: DirectionBuy, Confidence: 0.4, Weight: 0.4, RiskLevel: RiskLow, ProposedSizePct: 0.5},
			{SourceID: "b", Direction: DirectionBuy, Confidence: 0.4, Weight: 0.3, RiskLevel: RiskLow, ProposedSizePct: 0.1},
			{SourceID: "c", Direction: DirectionHold, Confidence: 0.4, Weight: 0.3, RiskLevel: RiskLow},
		},
	}, defaultRules())
	require.NoError(t, err)
	assert.Equal(t, ActionSilence, verdict.FinalAction)
	assert.Empty(t, verdict.Violations)
	assert.Contains(t, verdict.Reasoning, "below threshold")
}

// 双峰闸门阈值低于硬上限：分歧 35% 通过规则 3（上限 50%）后仍触发
// silence（上限 30%），且不产生任何违规记录。
func TestDecideBimodalPassesHardRulesThenSilence(t *testing.T) {
	agg := NewAggregator(nil, &stubTieBreaker{ok: true}, 0.3)
	rules := defaultRules()
	rules.MaxDirectionalDisagreementPct = 0.5
	verdict, err := agg.Decide(context.Background(), Request{
		Symbol: "NVDA",
		Opinions: []Opinion{
			{SourceID: "bull", Direction: DirectionBuy, Confidence: 0.8, Weight: 0.65, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
			{SourceID: "bear", Direction: DirectionSell, Confidence: 0.75, Weight: 0.35, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
		},
	}, rules)
	require.NoError(t, err)
	assert.Equal(t, ActionSilence, verdict.FinalAction)
	assert.Empty(t, verdict.Violations)
	assert.Contains(t, verdict.Reasoning, "directions bimodal")
}

func splitOpinions() []Opinion {
	return []Opinion{
		{SourceID: "bull", Direction: DirectionBuy, Confidence: 0.9, Weight: 0.6, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
		{SourceID: "bear", Direction: DirectionSell, Confidence: 0.7, Weight: 0.3, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
	}
}

func TestDecideSplitWithoutTieBreakerFallsToSilence(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{Symbol: "ETH", Opinions: splitOpinions()}, defaultRules())
	require.NoError(t, err)
	assert.Equal(t, ActionSilence, verdict.FinalAction)
	assert.Contains(t, verdict.Reasoning, "tie-break unavailable")
}

func TestDecideSplitAdoptsTieBreakDirection(t *testing.T) {
	tb := &stubTieBreaker{tb: TieBreak{Direction: DirectionSell, Confidence: 0.8, Reasoning: "macro turning"}, ok: true}
	agg := NewAggregator(nil, tb, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{Symbol: "ETH", Opinions: splitOpinions()}, defaultRules())
	require.NoError(t, err)
	assert.True(t, tb.called)
	assert.Equal(t, ActionApprove, verdict.FinalAction)
	assert.Equal(t, DirectionSell, verdict.Direction)
	assert.InDelta(t, 0.1, verdict.SizePct, 1e-9)
	assert.Equal(t, AutonomyAuto, verdict.ExecutionAutonomy)
	assert.Contains(t, verdict.Reasoning, "tie-break chose sell")
}

func TestDecideTieBreakHoldMeansSilence(t *testing.T) {
	tb := &stubTieBreaker{tb: TieBreak{Direction: DirectionHold, Reasoning: "no edge"}, ok: true}
	agg := NewAggregator(nil, tb, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{Symbol: "ETH", Opinions: splitOpinions()}, defaultRules())
	require.NoError(t, err)
	assert.Equal(t, ActionSilence, verdict.FinalAction)
	assert.Contains(t, verdict.Reasoning, "tie-break recommends no action")
}

func TestDecideUnanimousSkipsTieBreak(t *testing.T) {
	tb := &stubTieBreaker{ok: false}
	agg := NewAggregator(nil, tb, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{
		Symbol: "BTC",
		Opinions: []Opinion{
			{SourceID: "a", Direction: DirectionBuy, Confidence: 0.9, Weight: 0.5, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
			{SourceID: "b", Direction: DirectionBuy, Confidence: 0.85, Weight: 0.5, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
		},
	}, defaultRules())
	require.NoError(t, err)
	assert.False(t, tb.called)
	assert.Equal(t, ActionApprove, verdict.FinalAction)
	assert.Equal(t, DirectionBuy, verdict.Direction)
}

func TestDecideHoldMajorityIsSilence(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.4)
	verdict, err := agg.Decide(context.Background(), Request{
		Symbol: "BTC",
		Opinions: []Opinion{
			{SourceID: "a", Direction: DirectionHold, Confidence: 0.9, Weight: 0.7, RiskLevel: RiskLow},
			{SourceID: "b", Direction: DirectionBuy, Confidence: 0.9, Weight: 0.3, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
		},
	}, defaultRules())
	require.NoError(t, err)
	assert.Equal(t, ActionSilence, verdict.FinalAction)
	assert.Contains(t, verdict.Reasoning, "majority favors hold")
}

func TestDecideHighRiskWeakConfidenceRejects(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.4)
	rules := defaultRules()
	rules.RejectOnExtremeRisk = false
	verdict, err := agg.Decide(context.Background(), Request{
		Symbol: "SOL",
		Opinions: []Opinion{
			{SourceID: "a", Direction: DirectionBuy, Confidence: 0.7, Weight: 0.6, RiskLevel: RiskLow, ProposedSizePct: 0.1, StopLossSet: true},
			{SourceID: "risk", Direction: DirectionBuy, Confidence: 0.85, Weight: 0.4, RiskLevel: RiskHigh, ProposedSizePct: 0.1, StopLossSet: true},
		},
	}, rules)
	require.NoError(t, err)
	// 风险分 78，方向置信度 0.7 < 0.9：风险-方向仲裁拒绝。
	assert.Equal(t, ActionReject, verdict.FinalAction)
	require.Len(t, verdict.Violations, 1)
	assert.Contains(t, verdict.Violations[0], "confidence 0.70 insufficient")
}
