package notifier

import (
	"strings"
	"time"

	"arbiter/internal/logger"
)

const maxEventMessageLen = 3800

// Event 是发给下游告警通道的仲裁事件。
// 目前两类：priority_override（夺仓）和 extreme_risk_reject（极端风险拒绝）。
type Event struct {
	Type               string
	Ticker             string
	StrategiesInvolved []string
	Reasoning          string
	OccurredAt         time.Time
}

// Emitter 把仲裁事件渲染成文本并推送；发送失败只记日志，
// 告警通道不允许反向阻塞仲裁。
type Emitter struct {
	notifier TextNotifier
}

func NewEmitter(n TextNotifier) *Emitter {
	if n == nil {
		n = Noop{}
	}
	return &Emitter{notifier: n}
}

// Emit 异步发送一条事件。
func (e *Emitter) Emit(evt Event) {
	go func() {
		if err := e.notifier.SendText(renderEvent(evt)); err != nil {
			logger.Warnf("notify %s on %s failed: %v", evt.Type, evt.Ticker, err)
		}
	}()
}

func renderEvent(evt Event) string {
	var b strings.Builder
	switch evt.Type {
	case "priority_override":
		b.WriteString("⚔️ 优先级夺仓 Priority Override\n\n")
	case "extreme_risk_reject":
		b.WriteString("🛑 极端风险拒绝 Extreme Risk Reject\n\n")
	default:
		b.WriteString("📣 " + evt.Type + "\n\n")
	}
	b.WriteString("```\n")
	b.WriteString("- ticker: " + evt.Ticker + "\n")
	if len(evt.StrategiesInvolved) > 0 {
		b.WriteString("- strategies: " + strings.Join(evt.StrategiesInvolved, ", ") + "\n")
	}
	if r := strings.TrimSpace(evt.Reasoning); r != "" {
		b.WriteString("- reasoning: " + strings.ReplaceAll(r, "```", "'''") + "\n")
	}
	b.WriteString("```\n")
	if !evt.OccurredAt.IsZero() {
		b.WriteString("时间：" + evt.OccurredAt.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxEventMessageLen {
		body = body[:maxEventMessageLen] + "..."
	}
	return body
}
