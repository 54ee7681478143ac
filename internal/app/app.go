package app

import (
	"context"
	"fmt"

	"arbiter/internal/config"
	"arbiter/internal/logger"
	"arbiter/internal/store"
	httpapi "arbiter/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg     *config.Config
	service *Service
	store   store.Store
	server  *httpapi.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	svc, st, err := buildService(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	router := httpapi.NewRouter(svc, svc.Detector, svc.Verdicts, svc.Registry)
	server, err := httpapi.NewServer(cfg.App.HTTPAddr, router)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &App{cfg: cfg, service: svc, store: st, server: server}, nil
}

// Service 暴露仲裁门面（测试与回放用）。
func (a *App) Service() *Service {
	if a == nil {
		return nil
	}
	return a.service
}

// Run 启动 HTTP 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()
	logger.Infof("arbiter listening on %s (rules v%d, env=%s)", a.server.Addr(), a.service.Rules.Version, a.cfg.App.Env)
	return a.server.Start(ctx)
}

func (a *App) close() {
	if a.service != nil && a.service.Verdicts != nil {
		if err := a.service.Verdicts.Close(); err != nil {
			logger.Warnf("close verdict log failed: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("close store failed: %v", err)
		}
	}
}
