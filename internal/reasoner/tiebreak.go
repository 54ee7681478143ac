package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arbiter/internal/decision"
	"arbiter/internal/logger"
	"arbiter/internal/pkg/circuit"
	"arbiter/internal/pkg/jsonutil"
)

const tieBreakSystemPrompt = `You are the arbitration judge for a trading desk.
Several specialist analysts disagree on direction for one instrument.
Read their rationales and the portfolio context, then answer with a single JSON object:
{"direction": "buy"|"sell"|"hold", "confidence": 0..1, "reasoning": "one short paragraph"}
Answer "hold" when the evidence does not clearly favor one side. Output JSON only.`

// TieBreakClient 调用外部推理服务做方向仲裁。超时、熔断、格式不合法都
// 归一为“无响应”（ok=false），由聚合器回退为 silence。
type TieBreakClient struct {
	Provider ModelProvider
	Timeout  time.Duration
	Breaker  *circuit.Breaker
}

func NewTieBreakClient(provider ModelProvider, timeout time.Duration) *TieBreakClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TieBreakClient{
		Provider: provider,
		Timeout:  timeout,
		Breaker:  circuit.NewBreaker("reasoner", 3, time.Minute),
	}
}

// Break 实现 decision.TieBreaker。
func (c *TieBreakClient) Break(ctx context.Context, req decision.TieBreakRequest) (decision.TieBreak, bool) {
	if c == nil || c.Provider == nil || !c.Provider.Enabled() {
		return decision.TieBreak{}, false
	}
	if c.Breaker != nil && !c.Breaker.Allow() {
		logger.Warnf("[tiebreak] %s skipped: circuit open", req.Symbol)
		return decision.TieBreak{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.Provider.Call(callCtx, ChatPayload{
		System:     tieBreakSystemPrompt,
		User:       renderTieBreakPrompt(req),
		ExpectJSON: true,
	})
	if err != nil {
		c.recordFailure()
		logger.Warnf("[tiebreak] %s provider=%s failed after %s: %v",
			req.Symbol, c.Provider.ID(), time.Since(start).Truncate(time.Millisecond), err)
		return decision.TieBreak{}, false
	}

	extracted, ok := jsonutil.ExtractObject(raw)
	if !ok {
		c.recordFailure()
		logger.Warnf("[tiebreak] %s provider=%s returned no json object", req.Symbol, c.Provider.ID())
		return decision.TieBreak{}, false
	}
	if err := ValidateTieBreak(extracted); err != nil {
		c.recordFailure()
		logger.Warnf("[tiebreak] %s provider=%s response discarded: %v", req.Symbol, c.Provider.ID(), err)
		return decision.TieBreak{}, false
	}

	var parsed struct {
		Direction  string  `json:"direction"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		c.recordFailure()
		return decision.TieBreak{}, false
	}
	dir := decision.NormalizeDirection(parsed.Direction)
	if dir == "" {
		c.recordFailure()
		return decision.TieBreak{}, false
	}
	if c.Breaker != nil {
		c.Breaker.RecordSuccess()
	}
	logger.Infof("[tiebreak] %s provider=%s direction=%s confidence=%.2f elapsed=%s",
		req.Symbol, c.Provider.ID(), dir, parsed.Confidence, time.Since(start).Truncate(time.Millisecond))
	return decision.TieBreak{
		Direction:  dir,
		Confidence: parsed.Confidence,
		Reasoning:  strings.TrimSpace(parsed.Reasoning),
	}, true
}

func (c *TieBreakClient) recordFailure() {
	if c.Breaker != nil {
		c.Breaker.RecordFailure()
	}
}

func renderTieBreakPrompt(req decision.TieBreakRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instrument: %s\n", strings.ToUpper(strings.TrimSpace(req.Symbol)))
	fmt.Fprintf(&b, "Portfolio risk used: %.1f%%, open positions: %d\n\n", req.Portfolio.RiskUsedPct*100, req.Portfolio.OpenCount)
	b.WriteString("Analyst opinions:\n")
	for _, o := range req.Opinions {
		if o.Weight <= 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: direction=%s confidence=%.2f weight=%.2f risk=%s\n",
			o.SourceID, o.Direction, o.Confidence, o.Weight, o.RiskLevel)
		if r := strings.TrimSpace(o.Rationale); r != "" {
			fmt.Fprintf(&b, "  rationale: %s\n", r)
		}
	}
	return b.String()
}
