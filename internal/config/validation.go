package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。阈值越界属于配置错误，直接拒绝启动，
// 而不是在裁决路径上报 ConfigurationError。
func validate(c *Config) error {
	if err := c.HardRules.validate(); err != nil {
		return err
	}
	if s := c.Silence.MaxDisagreementPct; s <= 0 || s >= c.HardRules.MaxDirectionalDisagreementPct {
		return fmt.Errorf("silence.max_disagreement_pct must be in (0, hard_rules.max_directional_disagreement_pct), got %v", s)
	}
	if err := c.Reasoner.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.Ownership.LockWindowSeconds < 0 {
		return fmt.Errorf("ownership.lock_window_seconds must be >= 0")
	}
	return nil
}

func (h *HardRulesConfig) validate() error {
	if h.Version < 1 {
		return fmt.Errorf("hard_rules.version must be >= 1")
	}
	pctFields := []struct {
		name string
		val  float64
	}{
		{"max_position_size_pct", h.MaxPositionSizePct},
		{"max_portfolio_risk_pct", h.MaxPortfolioRiskPct},
		{"min_avg_confidence", h.MinAvgConfidence},
		{"max_directional_disagreement_pct", h.MaxDirectionalDisagreementPct},
	}
	for _, f := range pctFields {
		if f.val <= 0 || f.val > 1 {
			return fmt.Errorf("hard_rules.%s must be in (0, 1], got %v", f.name, f.val)
		}
	}
	return nil
}

func (r *ReasonerConfig) validate() error {
	seen := make(map[string]struct{}, len(r.Models))
	for _, m := range r.ResolveModels() {
		if m.ID == "" {
			return fmt.Errorf("reasoner.models contains entry without id")
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("reasoner.models duplicates id %s", m.ID)
		}
		seen[m.ID] = struct{}{}
		if !m.Enabled {
			continue
		}
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("reasoner.models.%s missing model", m.ID)
		}
		if strings.TrimSpace(m.APIURL) == "" {
			return fmt.Errorf("reasoner.models.%s missing api_url (can inherit from preset)", m.ID)
		}
		if m.Weight < 0 || m.Weight > 1 {
			return fmt.Errorf("reasoner.models.%s weight must be in [0, 1]", m.ID)
		}
	}
	if want := strings.TrimSpace(r.TieBreakModel); want != "" {
		if _, ok := seen[want]; !ok {
			return fmt.Errorf("reasoner.tie_break_model references unconfigured model id: %s", want)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
		}
	}
	return nil
}
