package config

import "strings"

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = "dev"
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = "info"
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		c.App.HTTPAddr = ":8090"
	}

	if c.HardRules.Version <= 0 {
		c.HardRules.Version = 1
	}
	if c.HardRules.MaxPositionSizePct <= 0 {
		c.HardRules.MaxPositionSizePct = 0.25
	}
	if c.HardRules.MaxPortfolioRiskPct <= 0 {
		c.HardRules.MaxPortfolioRiskPct = 0.6
	}
	if c.HardRules.MinAvgConfidence <= 0 {
		c.HardRules.MinAvgConfidence = 0.55
	}
	if c.HardRules.MaxDirectionalDisagreementPct <= 0 {
		c.HardRules.MaxDirectionalDisagreementPct = 0.4
	}

	if c.Silence.MaxDisagreementPct <= 0 {
		c.Silence.MaxDisagreementPct = 0.25
		// 硬上限配置得比默认值更紧时，退到硬上限的一半保持闸门可达。
		if c.Silence.MaxDisagreementPct >= c.HardRules.MaxDirectionalDisagreementPct {
			c.Silence.MaxDisagreementPct = c.HardRules.MaxDirectionalDisagreementPct / 2
		}
	}

	if c.Reasoner.TieBreakTimeoutSecs <= 0 {
		c.Reasoner.TieBreakTimeoutSecs = 20
	}
	if c.Reasoner.SourceTimeoutSeconds <= 0 {
		c.Reasoner.SourceTimeoutSeconds = 30
	}
	for i := range c.Reasoner.Models {
		if c.Reasoner.Models[i].Weight <= 0 {
			c.Reasoner.Models[i].Weight = 1.0 / float64(len(c.Reasoner.Models))
		}
	}

	if strings.TrimSpace(c.Storage.DatabasePath) == "" {
		c.Storage.DatabasePath = "data/arbiter.db"
	}
	if strings.TrimSpace(c.Storage.VerdictLogPath) == "" {
		c.Storage.VerdictLogPath = "data/verdicts.db"
	}
	if strings.TrimSpace(c.Strategies.Path) == "" {
		c.Strategies.Path = "configs/strategies.yaml"
	}
}
