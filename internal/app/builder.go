package app

import (
	"context"
	"fmt"
	"time"

	"arbiter/internal/config"
	"arbiter/internal/decision"
	"arbiter/internal/logger"
	"arbiter/internal/notifier"
	"arbiter/internal/ownership"
	"arbiter/internal/reasoner"
	"arbiter/internal/registry"
	"arbiter/internal/store"
	"arbiter/internal/store/model"
	"arbiter/internal/store/sqlite"
	"arbiter/internal/store/verdictlog"
)

// buildService 按配置组装仲裁门面及其全部依赖。
func buildService(ctx context.Context, cfg *config.Config) (*Service, store.Store, error) {
	st, err := sqlite.NewSqliteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store failed: %w", err)
	}

	reg, err := registry.NewRegistry(cfg.Strategies.Path)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("load strategy registry failed: %w", err)
	}
	if err := seedStrategies(ctx, st, reg); err != nil {
		st.Close()
		return nil, nil, err
	}

	verdicts, err := verdictlog.NewVerdictLogStore(cfg.Storage.VerdictLogPath)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("open verdict log failed: %w", err)
	}

	var tieBreaker decision.TieBreaker
	if tb, ok := cfg.Reasoner.ResolveTieBreakModel(); ok {
		tieBreaker = reasoner.NewTieBreakClient(
			buildProvider(tb),
			time.Duration(cfg.Reasoner.TieBreakTimeoutSecs)*time.Second,
		)
		logger.Infof("tie-break model: %s", tb.ID)
	} else {
		logger.Warnf("no tie-break model configured: directional splits fall back to silence")
	}

	collector := &decision.Collector{
		Sources:       buildSources(cfg.Reasoner),
		SourceTimeout: time.Duration(cfg.Reasoner.SourceTimeoutSeconds) * time.Second,
	}

	aggregator := decision.NewAggregator(decision.DefaultRiskSizer{}, tieBreaker, cfg.Silence.MaxDisagreementPct)

	detector := ownership.NewDetector(st, reg, time.Duration(cfg.Ownership.LockWindowSeconds)*time.Second)

	var textNotifier notifier.TextNotifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		textNotifier = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	svc := &Service{
		Aggregator: aggregator,
		Collector:  collector,
		Verdicts:   verdicts,
		Detector:   detector,
		Registry:   reg,
		Emitter:    notifier.NewEmitter(textNotifier),
		Rules: decision.HardRuleSet{
			Version:                       cfg.HardRules.Version,
			MaxPositionSizePct:            cfg.HardRules.MaxPositionSizePct,
			MaxPortfolioRiskPct:           cfg.HardRules.MaxPortfolioRiskPct,
			MinAvgConfidence:              cfg.HardRules.MinAvgConfidence,
			MaxDirectionalDisagreementPct: cfg.HardRules.MaxDirectionalDisagreementPct,
			StopLossRequired:              cfg.HardRules.StopLossRequired,
			RejectOnExtremeRisk:           cfg.HardRules.RejectOnExtremeRisk,
		},
	}
	return svc, st, nil
}

func buildProvider(m config.ResolvedModelConfig) reasoner.ModelProvider {
	return reasoner.NewOpenAIModelProvider(m.ID, m.Enabled, &reasoner.OpenAIChatClient{
		BaseURL: m.APIURL,
		APIKey:  m.APIKey,
		Model:   m.Model,
		Headers: m.Headers,
	})
}

func buildSources(cfg config.ReasonerConfig) []decision.Source {
	models := cfg.ResolveModels()
	sources := make([]decision.Source, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		sources = append(sources, &reasoner.OpinionSource{
			Provider: buildProvider(m),
			Persona:  m.Persona,
			Weight:   m.Weight,
		})
	}
	if len(sources) > 0 {
		logger.Infof("opinion sources: %d enabled", len(sources))
	}
	return sources
}

// seedStrategies 把注册表快照写入数据库，冲突日志的外键由此可对账。
func seedStrategies(ctx context.Context, st store.Store, reg *registry.Registry) error {
	uow, err := st.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin strategy seed failed: %w", err)
	}
	for _, s := range reg.List() {
		if err := uow.Strategies().Upsert(ctx, &model.StrategyModel{
			ID:          s.ID,
			Name:        s.Name,
			Priority:    s.Priority,
			TimeHorizon: s.TimeHorizon,
			IsActive:    s.IsActive,
		}); err != nil {
			uow.Rollback()
			return fmt.Errorf("seed strategy %s failed: %w", s.ID, err)
		}
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit strategy seed failed: %w", err)
	}
	return nil
}
