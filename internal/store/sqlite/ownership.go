package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"arbiter/internal/store/model"

	"gorm.io/gorm"
)

type ownershipRepo struct {
	db *gorm.DB
}

func NewOwnershipRepo(db *gorm.DB) *ownershipRepo {
	return &ownershipRepo{db: db}
}

// FindByTicker 返回 ticker 对应的归属行；不存在返回 (nil, nil)。
func (r *ownershipRepo) FindByTicker(ctx context.Context, ticker string) (*model.PositionOwnershipModel, error) {
	var row model.PositionOwnershipModel
	err := r.db.WithContext(ctx).Where("ticker = ?", normalizeTicker(ticker)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *ownershipRepo) Save(ctx context.Context, row *model.PositionOwnershipModel) error {
	row.Ticker = normalizeTicker(row.Ticker)
	now := time.Now().Unix()
	if row.CreatedAtUnix == 0 {
		row.CreatedAtUnix = now
	}
	row.UpdatedAtUnix = now
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *ownershipRepo) DeleteByTicker(ctx context.Context, ticker string) error {
	return r.db.WithContext(ctx).
		Where("ticker = ?", normalizeTicker(ticker)).
		Delete(&model.PositionOwnershipModel{}).Error
}

func (r *ownershipRepo) List(ctx context.Context) ([]model.PositionOwnershipModel, error) {
	var rows []model.PositionOwnershipModel
	if err := r.db.WithContext(ctx).Order("ticker ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
