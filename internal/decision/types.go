package decision

import (
	"strings"
	"time"
)

// 中文说明：
// 本文件定义意见聚合与最终裁决相关的通用数据结构。

// Direction 表示交易方向建议。
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionHold Direction = "hold"
)

// RiskLevel 表示风险评级。
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// Action 是裁决的终态动作。
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionSilence Action = "silence"
)

// Autonomy 表示批准后的执行方式。
type Autonomy string

const (
	AutonomyAuto   Autonomy = "auto"
	AutonomyManual Autonomy = "manual_approval"
)

// Opinion 单个专家来源的加权建议，生成后不可变。
type Opinion struct {
	SourceID        string    `json:"source_id"`
	Direction       Direction `json:"direction"`
	Confidence      float64   `json:"confidence"`
	Weight          float64   `json:"weight"`
	RiskLevel       RiskLevel `json:"risk_level"`
	ProposedSizePct float64   `json:"proposed_size_pct"`
	StopLossSet     bool      `json:"stop_loss_set"`
	Rationale       string    `json:"rationale,omitempty"`
}

// HardRuleSet 是一次决策周期内不可变的安全阈值集合。
type HardRuleSet struct {
	Version                       int     `json:"version"`
	MaxPositionSizePct            float64 `json:"max_position_size_pct"`
	MaxPortfolioRiskPct           float64 `json:"max_portfolio_risk_pct"`
	MinAvgConfidence              float64 `json:"min_avg_confidence"`
	MaxDirectionalDisagreementPct float64 `json:"max_directional_disagreement_pct"`
	StopLossRequired              bool    `json:"stop_loss_required"`
	RejectOnExtremeRisk           bool    `json:"reject_on_extreme_risk"`
}

// PortfolioState 描述裁决时刻的组合占用情况。
type PortfolioState struct {
	RiskUsedPct float64 `json:"risk_used_pct"`
	EquityUSD   float64 `json:"equity_usd,omitempty"`
	OpenCount   int     `json:"open_count,omitempty"`
}

// Request 一次裁决请求（来自下单层）。
type Request struct {
	Symbol               string         `json:"symbol"`
	RequestingStrategyID string         `json:"requesting_strategy_id,omitempty"`
	Opinions             []Opinion      `json:"opinions"`
	Portfolio            PortfolioState `json:"portfolio"`
}

// Verdict 是聚合器对一次决策周期的终态输出，写入后不再修改。
type Verdict struct {
	TraceID           string    `json:"trace_id"`
	Symbol            string    `json:"symbol"`
	FinalAction       Action    `json:"final_action"`
	Direction         Direction `json:"direction,omitempty"`
	SizePct           float64   `json:"size_pct"`
	Confidence        float64   `json:"confidence"`
	ExecutionAutonomy Autonomy  `json:"execution_autonomy,omitempty"`
	Violations        []string  `json:"violations,omitempty"`
	ExtremeRisk       bool      `json:"extreme_risk,omitempty"`
	Reasoning         string    `json:"reasoning"`
	RuleSetVersion    int       `json:"rule_set_version"`
	CreatedAt         time.Time `json:"created_at"`
}

// NormalizeDirection 将模型返回的方向文本规整为枚举值；无法识别返回空。
func NormalizeDirection(raw string) Direction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long", "open_long":
		return DirectionBuy
	case "sell", "short", "open_short":
		return DirectionSell
	case "hold", "wait", "neutral":
		return DirectionHold
	default:
		return ""
	}
}

// NormalizeRiskLevel 规整风险评级文本，未知值按 high 保守处理。
func NormalizeRiskLevel(raw string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow
	case "medium", "mid", "moderate":
		return RiskMedium
	case "high":
		return RiskHigh
	case "extreme", "critical":
		return RiskExtreme
	default:
		return RiskHigh
	}
}

// TotalWeight 返回意见集的权重和。
func TotalWeight(opinions []Opinion) float64 {
	total := 0.0
	for _, o := range opinions {
		if o.Weight > 0 {
			total += o.Weight
		}
	}
	return total
}

// WeightedConfidence 计算加权平均置信度（Σ confidence·weight / Σ weight）。
func WeightedConfidence(opinions []Opinion) float64 {
	total := TotalWeight(opinions)
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range opinions {
		if o.Weight > 0 {
			sum += o.Confidence * o.Weight
		}
	}
	return sum / total
}

// MajorityDirection 返回权重最高的方向及其权重占比；并列时偏向 hold。
func MajorityDirection(opinions []Opinion) (Direction, float64) {
	total := TotalWeight(opinions)
	if total == 0 {
		return DirectionHold, 0
	}
	weights := map[Direction]float64{}
	for _, o := range opinions {
		if o.Weight > 0 {
			weights[o.Direction] += o.Weight
		}
	}
	best := DirectionHold
	bestW := weights[DirectionHold]
	for _, d := range []Direction{DirectionBuy, DirectionSell} {
		if weights[d] > bestW {
			best = d
			bestW = weights[d]
		}
	}
	return best, bestW / total
}

// DisagreementPct 返回与多数方向不一致的权重占比。
func DisagreementPct(opinions []Opinion) float64 {
	_, majorityShare := MajorityDirection(opinions)
	if majorityShare == 0 {
		return 0
	}
	return 1 - majorityShare
}

// Unanimous 判断所有有效权重的意见是否方向一致。
func Unanimous(opinions []Opinion) bool {
	var seen Direction
	for _, o := range opinions {
		if o.Weight <= 0 {
			continue
		}
		if seen == "" {
			seen = o.Direction
			continue
		}
		if o.Direction != seen {
			return false
		}
	}
	return true
}
