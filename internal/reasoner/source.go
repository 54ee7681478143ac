package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"arbiter/internal/decision"
	"arbiter/internal/pkg/jsonutil"
)

const opinionSystemPrompt = `You are %s, a specialist trading analyst.
Given the instrument and context below, answer with a single JSON object:
{"direction": "buy"|"sell"|"hold", "confidence": 0..1, "risk_level": "low"|"medium"|"high"|"extreme",
 "proposed_size_pct": 0..1, "stop_loss_set": true|false, "rationale": "one short paragraph"}
Output JSON only.`

// OpinionSource 把一个模型端点适配成专家意见来源（decision.Source）。
// 每个来源带静态权重，由配置决定。
type OpinionSource struct {
	Provider ModelProvider
	Persona  string
	Weight   float64
}

func (s *OpinionSource) ID() string {
	if s.Provider != nil {
		return s.Provider.ID()
	}
	return "unknown"
}

// Evaluate 调用模型生成一份意见；输出先抽取 JSON，再做 schema 校验。
func (s *OpinionSource) Evaluate(ctx context.Context, snap decision.Snapshot) (decision.Opinion, error) {
	if s.Provider == nil || !s.Provider.Enabled() {
		return decision.Opinion{}, fmt.Errorf("provider disabled")
	}
	persona := s.Persona
	if strings.TrimSpace(persona) == "" {
		persona = s.ID()
	}
	raw, err := s.Provider.Call(ctx, ChatPayload{
		System:     fmt.Sprintf(opinionSystemPrompt, persona),
		User:       renderOpinionPrompt(snap),
		ExpectJSON: true,
	})
	if err != nil {
		return decision.Opinion{}, err
	}
	extracted, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return decision.Opinion{}, fmt.Errorf("no json object in output")
	}
	if err := ValidateOpinion(extracted); err != nil {
		return decision.Opinion{}, err
	}
	var parsed struct {
		Direction       string  `json:"direction"`
		Confidence      float64 `json:"confidence"`
		RiskLevel       string  `json:"risk_level"`
		ProposedSizePct float64 `json:"proposed_size_pct"`
		StopLossSet     bool    `json:"stop_loss_set"`
		Rationale       string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		return decision.Opinion{}, err
	}
	return decision.Opinion{
		SourceID:        s.ID(),
		Direction:       decision.NormalizeDirection(parsed.Direction),
		Confidence:      parsed.Confidence,
		Weight:          s.Weight,
		RiskLevel:       decision.NormalizeRiskLevel(parsed.RiskLevel),
		ProposedSizePct: parsed.ProposedSizePct,
		StopLossSet:     parsed.StopLossSet,
		Rationale:       strings.TrimSpace(parsed.Rationale),
	}, nil
}

func renderOpinionPrompt(snap decision.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instrument: %s\n", strings.ToUpper(strings.TrimSpace(snap.Symbol)))
	fmt.Fprintf(&b, "Portfolio risk used: %.1f%%\n", snap.Portfolio.RiskUsedPct*100)
	if ctx := strings.TrimSpace(snap.Context); ctx != "" {
		b.WriteString("\nContext:\n")
		b.WriteString(ctx)
		b.WriteString("\n")
	}
	return b.String()
}
