package model

import (
	"time"

	"gorm.io/datatypes"
)

// OwnershipType 标记持仓归属方式。
type OwnershipType string

const (
	OwnershipPrimary OwnershipType = "primary"
	OwnershipShared  OwnershipType = "shared"
)

// PositionOwnershipModel 每个 ticker 至多一行，结构上保证
// “同一时刻至多一个 primary 拥有者”。
type PositionOwnershipModel struct {
	ID               int64         `gorm:"column:id;primaryKey"`
	Ticker           string        `gorm:"column:ticker;uniqueIndex"`
	OwningStrategyID string        `gorm:"column:owning_strategy_id;index"`
	OwnershipType    OwnershipType `gorm:"column:ownership_type"`
	LockedUntilUnix  *int64        `gorm:"column:locked_until"`
	Reasoning        string        `gorm:"column:reasoning"`
	CreatedAtUnix    int64         `gorm:"column:created_at"`
	UpdatedAtUnix    int64         `gorm:"column:updated_at"`
}

func (PositionOwnershipModel) TableName() string { return "position_ownerships" }

// LockedUntil 返回锁过期时间；未加锁返回零值。
func (m *PositionOwnershipModel) LockedUntil() time.Time {
	if m == nil || m.LockedUntilUnix == nil || *m.LockedUntilUnix <= 0 {
		return time.Time{}
	}
	return time.Unix(*m.LockedUntilUnix, 0)
}

// ConflictLogModel 是仲裁审计日志，只追加，不更新不删除。
type ConflictLogModel struct {
	ID                   int64          `gorm:"column:id;primaryKey"`
	Ticker               string         `gorm:"column:ticker;index"`
	RequestingStrategyID string         `gorm:"column:requesting_strategy_id;index"`
	OwningStrategyID     string         `gorm:"column:owning_strategy_id"`
	RequestingPriority   int            `gorm:"column:requesting_priority"`
	OwningPriority       int            `gorm:"column:owning_priority"`
	ActionAttempted      string         `gorm:"column:action_attempted"`
	Blocked              bool           `gorm:"column:blocked"`
	Resolution           string         `gorm:"column:resolution;index"`
	Reasoning            string         `gorm:"column:reasoning"`
	ContextJSON          datatypes.JSON `gorm:"column:context_json;type:TEXT"`
	CreatedAtUnix        int64          `gorm:"column:created_at;index"`
}

func (ConflictLogModel) TableName() string { return "conflict_logs" }

// StrategyModel 持久化策略目录（启动时从注册表播种）。
type StrategyModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	Name          string `gorm:"column:name;uniqueIndex"`
	Priority      int    `gorm:"column:priority"`
	TimeHorizon   string `gorm:"column:time_horizon"`
	IsActive      bool   `gorm:"column:is_active"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
}

func (StrategyModel) TableName() string { return "strategies" }
