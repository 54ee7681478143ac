package decision

import "fmt"

// Silence 与 reject 不同：silence 表示证据不足，reject 表示证据触碰安全边界。
// 这两种结果在审计链路上必须可区分，且永远不会同时出现在同一份裁决里。

// SilencePolicy gates a decision cycle on evidence quality. MinAvgConfidence
// comes from the HardRuleSet in force; MaxDisagreement is a separate ceiling
// for bimodal opinion sets that pass the hard rules but carry no clear
// majority.
type SilencePolicy struct {
	MinAvgConfidence float64
	MaxDisagreement  float64
}

// ConfidenceGate returns true when the weighted average confidence falls
// below the threshold. Evaluated before the hard rules so a low-evidence
// cycle is always reported as silence, never as reject.
func (p SilencePolicy) ConfidenceGate(opinions []Opinion) (bool, string) {
	avg := WeightedConfidence(opinions)
	if avg < p.MinAvgConfidence {
		return true, fmt.Sprintf("weighted confidence %.2f below threshold %.2f", avg, p.MinAvgConfidence)
	}
	return false, ""
}

// BimodalGate returns true when the surviving opinions split directions with
// no clear majority. Only consulted after the hard rules pass.
func (p SilencePolicy) BimodalGate(opinions []Opinion) (bool, string) {
	if p.MaxDisagreement <= 0 {
		return false, ""
	}
	disagreement := DisagreementPct(opinions)
	if disagreement > p.MaxDisagreement {
		major, share := MajorityDirection(opinions)
		return true, fmt.Sprintf("directions bimodal: majority %s holds only %.0f%% of weight (disagreement %.0f%% > ceiling %.0f%%)",
			major, share*100, disagreement*100, p.MaxDisagreement*100)
	}
	return false, ""
}
