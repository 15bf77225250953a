// Package mysql 定价结果的 MySQL 仓储
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/db"
	"gorm.io/gorm"
)

type pricingRepository struct {
	db *gorm.DB
}

// NewPricingRepository 创建并返回一个新的 pricingRepository 实例。
func NewPricingRepository(gdb *gorm.DB) domain.PricingRepository {
	return &pricingRepository{db: gdb}
}

// WithTx 开启事务，事务通过 ctx 传给仓储与发件箱
func (r *pricingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.Transaction(ctx, r.db, fn)
}

func (r *pricingRepository) Save(ctx context.Context, res *domain.PricingResult) error {
	model := toPricingResultModel(res)
	if model == nil {
		return nil
	}
	conn := db.Conn(ctx, r.db)
	if model.ID == 0 {
		if err := conn.Create(model).Error; err != nil {
			return fmt.Errorf("save pricing result %s: %w", res.Symbol, err)
		}
		res.ID = model.ID
		res.CreatedAt = model.CreatedAt
		res.UpdatedAt = model.UpdatedAt
		return nil
	}
	return conn.Model(&PricingResultModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"option_price":     model.OptionPrice,
			"underlying_price": model.UnderlyingPrice,
			"delta":            model.Delta,
			"gamma":            model.Gamma,
			"theta":            model.Theta,
			"vega":             model.Vega,
			"rho":              model.Rho,
			"calculated_at":    model.CalculatedAt,
			"pricing_model":    model.PricingModel,
			"updated_at":       time.Now(),
		}).Error
}

func (r *pricingRepository) GetLatest(ctx context.Context, symbol string) (*domain.PricingResult, error) {
	var m PricingResultModel
	err := db.Conn(ctx, r.db).
		Where("symbol = ?", symbol).
		Order("calculated_at desc, id desc").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, symbol)
	}
	if err != nil {
		return nil, err
	}
	return toPricingResult(&m), nil
}

func (r *pricingRepository) GetHistory(ctx context.Context, symbol string, limit int) ([]*domain.PricingResult, error) {
	var models []PricingResultModel
	if err := db.Conn(ctx, r.db).
		Where("symbol = ?", symbol).
		Order("calculated_at desc, id desc").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]*domain.PricingResult, len(models))
	for i := range models {
		res[i] = toPricingResult(&models[i])
	}
	return res, nil
}

// DeleteBefore 删除计算时间早于 before 的结果
func (r *pricingRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := db.Conn(ctx, r.db).
		Where("calculated_at < ?", before.UnixMilli()).
		Delete(&PricingResultModel{})
	return tx.RowsAffected, tx.Error
}
