package sqlite

import (
	"context"
	"time"

	"arbiter/internal/store/model"

	"gorm.io/gorm"
)

type conflictRepo struct {
	db *gorm.DB
}

func NewConflictRepo(db *gorm.DB) *conflictRepo {
	return &conflictRepo{db: db}
}

func (r *conflictRepo) Append(ctx context.Context, entry *model.ConflictLogModel) error {
	entry.Ticker = normalizeTicker(entry.Ticker)
	if entry.CreatedAtUnix == 0 {
		entry.CreatedAtUnix = time.Now().Unix()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *conflictRepo) ListRecent(ctx context.Context, ticker string, limit int) ([]model.ConflictLogModel, error) {
	var entries []model.ConflictLogModel
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if t := normalizeTicker(ticker); t != "" {
		q = q.Where("ticker = ?", t)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
