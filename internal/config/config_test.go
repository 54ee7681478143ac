package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `app:
  env: test
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8090", cfg.App.HTTPAddr)
	assert.Equal(t, 1, cfg.HardRules.Version)
	assert.InDelta(t, 0.25, cfg.HardRules.MaxPositionSizePct, 1e-9)
	assert.InDelta(t, 0.55, cfg.HardRules.MinAvgConfidence, 1e-9)
	assert.InDelta(t, 0.25, cfg.Silence.MaxDisagreementPct, 1e-9)
	assert.Equal(t, 20, cfg.Reasoner.TieBreakTimeoutSecs)
	assert.Equal(t, "data/arbiter.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "configs/strategies.yaml", cfg.Strategies.Path)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `hard_rules:
  max_position_size_pct: 0.15
  stop_loss_required: true
`)
	path := writeConfig(t, dir, "config.yaml", `include:
  - base.yaml
app:
  env: prod
hard_rules:
  version: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, 3, cfg.HardRules.Version)
	assert.InDelta(t, 0.15, cfg.HardRules.MaxPositionSizePct, 1e-9)
	assert.True(t, cfg.HardRules.StopLossRequired)
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `hard_rules:
  max_position_size_pct: 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_position_size_pct")
}

// 双峰阈值不低于硬上限时闸门永远不会触发，这类配置直接拒绝启动。
func TestLoadRejectsSilenceCeilingAtOrAboveHardRuleCeiling(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `hard_rules:
  max_directional_disagreement_pct: 0.4
silence:
  max_disagreement_pct: 0.4
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "silence.max_disagreement_pct")
}

// 硬上限收得比默认双峰阈值还紧时，未显式配置的阈值退到硬上限一半。
func TestLoadSilenceDefaultTracksTightHardCeiling(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `hard_rules:
  max_directional_disagreement_pct: 0.2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, cfg.Silence.MaxDisagreementPct, 1e-9)
}

func TestLoadRejectsIncompleteTelegram(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `notify:
  telegram:
    enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestResolveModelsMergesPresets(t *testing.T) {
	explicit := false
	cfg := ReasonerConfig{
		ProviderPresets: map[string]ModelPreset{
			"deepseek": {APIURL: "https://api.deepseek.com/v1", APIKey: "preset-key", ExpectJSON: true,
				Headers: map[string]string{"X-Region": "sg"}},
		},
		Models: []ModelConfig{
			{ID: "judge", Preset: "deepseek", Model: "deepseek-chat", Enabled: true, Weight: 0.5},
			{ID: "custom", Preset: "deepseek", Model: "deepseek-chat", Enabled: true, Weight: 0.5,
				APIKey: "own-key", Headers: map[string]string{"X-Region": "us"}, ExpectJSON: &explicit},
		},
		TieBreakModel: "judge",
	}
	models := cfg.ResolveModels()
	require.Len(t, models, 2)

	assert.Equal(t, "preset-key", models[0].APIKey)
	assert.Equal(t, "https://api.deepseek.com/v1", models[0].APIURL)
	assert.True(t, models[0].ExpectJSON)
	assert.Equal(t, "sg", models[0].Headers["X-Region"])

	// 条目字段覆盖预设；显式 false 覆盖预设的 true。
	assert.Equal(t, "own-key", models[1].APIKey)
	assert.False(t, models[1].ExpectJSON)
	assert.Equal(t, "us", models[1].Headers["X-Region"])

	tb, ok := cfg.ResolveTieBreakModel()
	require.True(t, ok)
	assert.Equal(t, "judge", tb.ID)
}

func TestValidateReasonerCatchesBadEntries(t *testing.T) {
	r := ReasonerConfig{Models: []ModelConfig{{ID: "a", Enabled: true, Model: "m"}}}
	err := r.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")

	r = ReasonerConfig{TieBreakModel: "ghost"}
	err = r.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tie_break_model")
}
