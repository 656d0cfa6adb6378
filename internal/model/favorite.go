package model

import "time"

// Favorite 用户收藏的商品，(user_id, product_id) 唯一。
type Favorite struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID    int64 `gorm:"not null;uniqueIndex:idx_favorites_user_product" json:"user_id"`
	ProductID uint  `gorm:"not null;uniqueIndex:idx_favorites_user_product" json:"product_id"`
}

func (Favorite) TableName() string { return "favorites" }
