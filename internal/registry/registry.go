package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"arbiter/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Strategy 描述一个已注册的交易策略。优先级调整属于管理操作，注册表每次
// 重载都会递增快照版本，冲突日志里记录的是裁决当时生效的优先级。
type Strategy struct {
	ID          string `mapstructure:"id" yaml:"id"`
	Name        string `mapstructure:"name" yaml:"name"`
	Priority    int    `mapstructure:"priority" yaml:"priority"`
	TimeHorizon string `mapstructure:"time_horizon" yaml:"time_horizon"`
	IsActive    bool   `mapstructure:"active" yaml:"active"`
}

// FileConfig 映射 strategies 配置文件。
type FileConfig struct {
	Strategies map[string]Strategy `mapstructure:"strategies" yaml:"strategies"`
}

// Snapshot 是某一时刻的完整策略目录。
type Snapshot struct {
	Version    int64
	LoadedAt   time.Time
	Strategies map[string]Strategy
}

// Registry 管理策略目录，支持配置文件热更新。
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry 读取策略文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("strategy registry reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前目录快照。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Get 返回指定 ID 的策略。
func (r *Registry) Get(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshot.Strategies[strings.TrimSpace(id)]
	return s, ok
}

// List 返回按优先级降序排列的全部策略。
func (r *Registry) List() []Strategy {
	snap := r.Snapshot()
	out := make([]Strategy, 0, len(snap.Strategies))
	for _, s := range snap.Strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) reload() error {
	cfg, err := readStrategyFile(r.path)
	if err != nil {
		return err
	}
	strategies := make(map[string]Strategy, len(cfg.Strategies))
	names := make(map[string]string, len(cfg.Strategies))
	for key, s := range cfg.Strategies {
		norm, err := normalizeStrategy(key, s)
		if err != nil {
			return err
		}
		if prev, dup := names[norm.Name]; dup {
			return fmt.Errorf("strategy name %q duplicated by %s and %s", norm.Name, prev, norm.ID)
		}
		names[norm.Name] = norm.ID
		strategies[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:    r.snapshot.Version + 1,
		LoadedAt:   time.Now(),
		Strategies: strategies,
	}
	version := r.snapshot.Version
	r.mu.Unlock()
	logger.Infof("strategy registry loaded %d strategies from %s (v%d)", len(strategies), filepath.Base(r.path), version)
	return nil
}

func normalizeStrategy(key string, s Strategy) (Strategy, error) {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		s.ID = strings.TrimSpace(key)
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = s.ID
	}
	switch strings.ToLower(strings.TrimSpace(s.TimeHorizon)) {
	case "short", "medium", "long":
		s.TimeHorizon = strings.ToLower(strings.TrimSpace(s.TimeHorizon))
	case "":
		s.TimeHorizon = "medium"
	default:
		return Strategy{}, fmt.Errorf("strategy %s: time_horizon must be short/medium/long", s.ID)
	}
	if s.Priority < 0 {
		return Strategy{}, fmt.Errorf("strategy %s: priority must be >= 0", s.ID)
	}
	return s, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:    src.Version,
		LoadedAt:   src.LoadedAt,
		Strategies: make(map[string]Strategy, len(src.Strategies)),
	}
	for id, s := range src.Strategies {
		dst.Strategies[id] = s
	}
	return dst
}

func readStrategyFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read strategy config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse strategy config failed: %w", err)
	}
	if len(cfg.Strategies) == 0 {
		return FileConfig{}, fmt.Errorf("strategy config %s defines no strategies", filepath.Base(path))
	}
	return cfg, nil
}
