package decision

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Risk-first rule: the risk opinion controls size, the directional opinion
// controls direction. Neither side may set both on its own.

// Resolution 是风险-方向仲裁的输出。
type Resolution struct {
	Action    Action
	Direction Direction
	SizePct   float64
	Autonomy  Autonomy
	RiskScore int
	Reasoning string
}

// RiskScore normalizes a risk opinion onto a 0-100 scale: a base value per
// risk level plus contextual severity (a confident risk call and a missing
// stop loss both push the score up).
func RiskScore(risk Opinion) int {
	score := 0
	switch risk.RiskLevel {
	case RiskLow:
		score = 20
	case RiskMedium:
		score = 50
	case RiskHigh:
		score = 75
	case RiskExtreme:
		score = 95
	default:
		score = 75
	}
	if risk.Confidence >= 0.8 {
		score += 3
	}
	if !risk.StopLossSet && risk.Direction != DirectionHold {
		score += 2
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ResolveRiskDirection 将方向建议与风险评估合并成有界的仓位与执行方式。
func ResolveRiskDirection(proposal, risk Opinion) Resolution {
	return applyRiskPolicy(RiskScore(risk), proposal)
}

// applyRiskPolicy is the total policy table over (riskScore, confidence).
func applyRiskPolicy(score int, proposal Opinion) Resolution {
	res := Resolution{
		Action:    ActionApprove,
		Direction: proposal.Direction,
		RiskScore: score,
	}
	size := decimal.NewFromFloat(proposal.ProposedSizePct)
	switch {
	case score <= 30:
		res.SizePct = proposal.ProposedSizePct
		if proposal.Confidence > 0.85 {
			res.Autonomy = AutonomyAuto
			res.Reasoning = fmt.Sprintf("risk score %d low, confidence %.2f high: full size, autonomous execution", score, proposal.Confidence)
		} else {
			res.Autonomy = AutonomyManual
			res.Reasoning = fmt.Sprintf("risk score %d low: full size, manual approval (confidence %.2f <= 0.85)", score, proposal.Confidence)
		}
	case score <= 70:
		res.SizePct, _ = size.Mul(decimal.NewFromFloat(0.5)).Float64()
		res.Autonomy = AutonomyManual
		res.Reasoning = fmt.Sprintf("risk score %d moderate: size halved to %.2f%%, manual approval", score, res.SizePct*100)
	case proposal.Confidence >= 0.9:
		res.SizePct, _ = size.Mul(decimal.NewFromFloat(0.2)).Float64()
		res.Autonomy = AutonomyManual
		res.Reasoning = fmt.Sprintf("risk score %d high but confidence %.2f strong: scout position %.2f%%, manual approval", score, proposal.Confidence, res.SizePct*100)
	default:
		res.Action = ActionReject
		res.SizePct = 0
		res.Reasoning = fmt.Sprintf("risk score %d high and confidence %.2f insufficient: rejected", score, proposal.Confidence)
	}
	return res
}
