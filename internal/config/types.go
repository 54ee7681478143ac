package config

import "strings"

// Config 是仲裁服务的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	HardRules  HardRulesConfig  `toml:"hard_rules"`
	Silence    SilenceConfig    `toml:"silence"`
	Reasoner   ReasonerConfig   `toml:"reasoner"`
	Storage    StorageConfig    `toml:"storage"`
	Ownership  OwnershipConfig  `toml:"ownership"`
	Notify     NotifyConfig     `toml:"notify"`
	Strategies StrategiesConfig `toml:"strategies"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// HardRulesConfig 映射硬规则阈值。每次裁决开始时整体取快照，
// 裁决中途不读配置。
type HardRulesConfig struct {
	Version                       int     `toml:"version"`
	MaxPositionSizePct            float64 `toml:"max_position_size_pct"`
	MaxPortfolioRiskPct           float64 `toml:"max_portfolio_risk_pct"`
	MinAvgConfidence              float64 `toml:"min_avg_confidence"`
	MaxDirectionalDisagreementPct float64 `toml:"max_directional_disagreement_pct"`
	StopLossRequired              bool    `toml:"stop_loss_required"`
	RejectOnExtremeRisk           bool    `toml:"reject_on_extreme_risk"`
}

// SilenceConfig 控制双峰静默闸门。阈值必须低于
// hard_rules.max_directional_disagreement_pct：闸门只在硬性规则放行之后
// 评估，阈值不低于硬上限时永远不会触发。
type SilenceConfig struct {
	MaxDisagreementPct float64 `toml:"max_disagreement_pct"`
}

// ReasonerConfig 包含意见源模型与外部 tie-break 模型的设置。
type ReasonerConfig struct {
	ProviderPresets      map[string]ModelPreset `toml:"provider_presets"`
	Models               []ModelConfig          `toml:"models"`
	TieBreakModel        string                 `toml:"tie_break_model"`
	TieBreakTimeoutSecs  int                    `toml:"tie_break_timeout_seconds"`
	SourceTimeoutSeconds int                    `toml:"source_timeout_seconds"`
}

// ModelPreset 描述可复用的 API 连接配置。
type ModelPreset struct {
	APIURL     string            `toml:"api_url"`
	APIKey     string            `toml:"api_key"`
	Headers    map[string]string `toml:"headers"`
	ExpectJSON bool              `toml:"expect_json"`
}

// ModelConfig 代表一个参与出意见的模型条目。
type ModelConfig struct {
	ID      string            `toml:"id"`
	Preset  string            `toml:"preset"`
	Enabled bool              `toml:"enabled"`
	APIURL  string            `toml:"api_url"`
	APIKey  string            `toml:"api_key"`
	Model   string            `toml:"model"`
	Headers map[string]string `toml:"headers"`
	Weight  float64           `toml:"weight"`
	Persona string            `toml:"persona"`
	// ExpectJSON 使用指针以区分"显式 false"与"沿用预设值"。
	ExpectJSON *bool `toml:"expect_json"`
}

// ResolvedModelConfig 是合并预设后的最终模型配置。
type ResolvedModelConfig struct {
	ID         string
	Enabled    bool
	APIURL     string
	APIKey     string
	Model      string
	Headers    map[string]string
	Weight     float64
	Persona    string
	ExpectJSON bool
}

type StorageConfig struct {
	DatabasePath   string `toml:"database_path"`
	VerdictLogPath string `toml:"verdict_log_path"`
}

type OwnershipConfig struct {
	LockWindowSeconds int `toml:"lock_window_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type StrategiesConfig struct {
	Path string `toml:"path"`
}

// ResolveModels 合并预设并返回启用的模型条目。
func (r ReasonerConfig) ResolveModels() []ResolvedModelConfig {
	out := make([]ResolvedModelConfig, 0, len(r.Models))
	for _, m := range r.Models {
		preset := r.ProviderPresets[strings.TrimSpace(m.Preset)]
		resolved := ResolvedModelConfig{
			ID:         strings.TrimSpace(m.ID),
			Enabled:    m.Enabled,
			APIURL:     firstNonEmpty(m.APIURL, preset.APIURL),
			APIKey:     firstNonEmpty(m.APIKey, preset.APIKey),
			Model:      strings.TrimSpace(m.Model),
			Headers:    mergeHeaders(preset.Headers, m.Headers),
			Weight:     m.Weight,
			Persona:    strings.TrimSpace(m.Persona),
			ExpectJSON: preset.ExpectJSON,
		}
		if m.ExpectJSON != nil {
			resolved.ExpectJSON = *m.ExpectJSON
		}
		out = append(out, resolved)
	}
	return out
}

// ResolveTieBreakModel 返回承担 tie-break 的模型配置。
func (r ReasonerConfig) ResolveTieBreakModel() (ResolvedModelConfig, bool) {
	want := strings.TrimSpace(r.TieBreakModel)
	for _, m := range r.ResolveModels() {
		if !m.Enabled {
			continue
		}
		if want == "" || m.ID == want {
			return m, true
		}
	}
	return ResolvedModelConfig{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func mergeHeaders(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
