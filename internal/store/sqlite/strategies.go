package sqlite

import (
	"context"
	"time"

	"arbiter/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type strategyRepo struct {
	db *gorm.DB
}

func NewStrategyRepo(db *gorm.DB) *strategyRepo {
	return &strategyRepo{db: db}
}

func (r *strategyRepo) Upsert(ctx context.Context, s *model.StrategyModel) error {
	s.UpdatedAtUnix = time.Now().Unix()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(s).Error
}

func (r *strategyRepo) List(ctx context.Context) ([]model.StrategyModel, error) {
	var rows []model.StrategyModel
	if err := r.db.WithContext(ctx).Order("priority DESC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
