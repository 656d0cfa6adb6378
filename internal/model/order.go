package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 物流状态：pending -> delivered -> received，只进不退。
const (
	ShipStatusPending   = "pending"
	ShipStatusDelivered = "delivered"
	ShipStatusReceived  = "received"
)

// 退款状态机：pending -> applied -> (processing -> success | failed)，
// 审核拒绝时 applied -> pending。success / failed 为终态。
const (
	RefundStatusPending    = "pending"
	RefundStatusApplied    = "applied"
	RefundStatusProcessing = "processing"
	RefundStatusSuccess    = "success"
	RefundStatusFailed     = "failed"
)

// OrderExtra 订单附加信息。按字段显式建模，避免无类型 map。
type OrderExtra struct {
	RefundReason         string `json:"refund_reason,omitempty"`
	RefundDisagreeReason string `json:"refund_disagree_reason,omitempty"`
	RefundFailedCode     string `json:"refund_failed_code,omitempty"`
}

// ShipData 发货快照。
type ShipData struct {
	ExpressCompany string `json:"express_company,omitempty"`
	ExpressNo      string `json:"express_no,omitempty"`
}

// Order 订单聚合根。
// PaidAt 非空即已支付，支付后订单免于关闭；Closed 一旦为 true 即终态。
// 支付回调与延迟关单对 paid_at / closed 的竞争靠条件更新裁决，二者只能成其一。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	No            string          `gorm:"size:64;uniqueIndex;not null" json:"no"`
	UserID        int64           `gorm:"not null;index" json:"user_id"`
	Address       string          `gorm:"size:255;not null" json:"address"`
	Remark        string          `gorm:"size:255" json:"remark"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	PaidAt        *time.Time      `json:"paid_at"`
	PaymentMethod string          `gorm:"size:32" json:"payment_method"`
	PaymentNo     string          `gorm:"size:64" json:"payment_no"`
	RefundStatus  string          `gorm:"size:16;not null;default:pending" json:"refund_status"`
	RefundNo      *string         `gorm:"size:64;uniqueIndex" json:"refund_no"`
	Closed        bool            `gorm:"not null;default:false" json:"closed"`
	Reviewed      bool            `gorm:"not null;default:false" json:"reviewed"`
	ShipStatus    string          `gorm:"size:16;not null;default:pending" json:"ship_status"`
	ShipData      ShipData        `gorm:"serializer:json" json:"ship_data"`
	Extra         OrderExtra      `gorm:"serializer:json" json:"extra"`
	CouponCodeID  *uint           `gorm:"index" json:"coupon_code_id"`

	Items []OrderItem `json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 订单行，下单时对 SKU 价格与数量做快照。
// 除评价字段外创建后不再变更。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID      uint            `gorm:"not null;index" json:"order_id"`
	ProductID    uint            `gorm:"not null;index" json:"product_id"`
	ProductSkuID uint            `gorm:"not null;index" json:"product_sku_id"`
	Amount       int             `gorm:"not null" json:"amount"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Rating       *int            `json:"rating"`
	Review       string          `gorm:"size:1024" json:"review"`
	ReviewedAt   *time.Time      `json:"reviewed_at"`
}

func (OrderItem) TableName() string { return "order_items" }
