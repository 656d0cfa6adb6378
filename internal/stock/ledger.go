// Package stock 是库存账本：对 SKU 库存做原子条件增减。
//
// Reserve / Release 接收调用方的 *gorm.DB（通常是事务句柄），不持有任何
// 进程内锁；条件更新本身就是并发原语，多实例共享同一数据库时依然正确。
package stock

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go_shop/internal/model"
)

// ErrInsufficientStock 库存不足，属于业务校验失败，调用方回滚整个事务即可。
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrSkuNotFound SKU 不存在。
var ErrSkuNotFound = errors.New("sku not found")

// Reserve 预留库存：单条「stock >= amount 才扣减」的条件更新。
// 扣减会导致负库存时更新不命中（RowsAffected == 0），返回 ErrInsufficientStock；
// SKU 不存在时返回 ErrSkuNotFound。
func Reserve(tx *gorm.DB, skuID uint, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("stock: reserve amount must be positive, got %d", amount)
	}
	res := tx.Model(&model.ProductSku{}).
		Where("id = ? AND stock >= ?", skuID, amount).
		UpdateColumn("stock", gorm.Expr("stock - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("stock: reserve sku %d: %w", skuID, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&model.ProductSku{}).Where("id = ?", skuID).Count(&n).Error; err != nil {
			return fmt.Errorf("stock: reserve sku %d: %w", skuID, err)
		}
		if n == 0 {
			return fmt.Errorf("sku %d: %w", skuID, ErrSkuNotFound)
		}
		return fmt.Errorf("sku %d: %w", skuID, ErrInsufficientStock)
	}
	return nil
}

// Release 释放库存，无条件加回。
// 释放量始终等于此前某次成功预留的量，因此不会把库存加过头。
func Release(tx *gorm.DB, skuID uint, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("stock: release amount must be positive, got %d", amount)
	}
	res := tx.Model(&model.ProductSku{}).
		Where("id = ?", skuID).
		UpdateColumn("stock", gorm.Expr("stock + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("stock: release sku %d: %w", skuID, res.Error)
	}
	return nil
}
