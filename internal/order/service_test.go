package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go_shop/internal/coupon"
	"go_shop/internal/model"
	"go_shop/internal/order"
	"go_shop/internal/payment"
	"go_shop/internal/stock"
)

type fakeScheduler struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
	err   error
}

func (f *fakeScheduler) ScheduleClose(_ context.Context, orderNo string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderNo)
	f.delay = delay
	return f.err
}

type fakeEvents struct {
	mu       sync.Mutex
	paid     []string
	reviewed []string
}

func (f *fakeEvents) OrderPaid(_ context.Context, orderNo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid = append(f.paid, orderNo)
}

func (f *fakeEvents) OrderReviewed(_ context.Context, orderNo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewed = append(f.reviewed, orderNo)
}

type fakeProvider struct {
	mu      sync.Mutex
	result  payment.RefundResult
	err     error
	lastReq payment.RefundRequest
	calls   int
	// onRefund 渠道调用期间执行，用于模拟与退款并发的外部改动
	onRefund func()
}

func (f *fakeProvider) Refund(_ context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
	f.mu.Lock()
	f.lastReq = req
	f.calls++
	result, err, hook := f.result, f.err, f.onRefund
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return result, err
}

type testEnv struct {
	db        *gorm.DB
	svc       *order.Service
	scheduler *fakeScheduler
	events    *fakeEvents
	provider  *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Product{}, &model.ProductSku{}, &model.CouponCode{},
		&model.Order{}, &model.OrderItem{},
	))

	scheduler := &fakeScheduler{}
	events := &fakeEvents{}
	provider := &fakeProvider{result: payment.RefundResult{Succeeded: true}}
	registry := payment.NewRegistry()
	registry.Register("stripe", provider)

	svc := order.NewService(db, registry, scheduler, events, 30*time.Minute)
	return &testEnv{db: db, svc: svc, scheduler: scheduler, events: events, provider: provider}
}

func (e *testEnv) newSku(t *testing.T, price string, stockCount int64) *model.ProductSku {
	t.Helper()
	d, err := decimal.NewFromString(price)
	require.NoError(t, err)
	p := &model.Product{Title: "商品", OnSale: true, Price: d}
	require.NoError(t, e.db.Create(p).Error)
	sku := &model.ProductSku{ProductID: p.ID, Title: "默认", Price: d, Stock: stockCount}
	require.NoError(t, e.db.Create(sku).Error)
	return sku
}

func (e *testEnv) newCoupon(t *testing.T, mutate func(*model.CouponCode)) *model.CouponCode {
	t.Helper()
	cp := &model.CouponCode{
		Name:    "满减券",
		Code:    "SAVE10",
		Type:    model.CouponTypeFixed,
		Value:   decimal.NewFromInt(10),
		Total:   1,
		Enabled: true,
	}
	if mutate != nil {
		mutate(cp)
	}
	require.NoError(t, e.db.Create(cp).Error)
	return cp
}

func (e *testEnv) skuStock(t *testing.T, skuID uint) int64 {
	t.Helper()
	var sku model.ProductSku
	require.NoError(t, e.db.First(&sku, skuID).Error)
	return sku.Stock
}

func (e *testEnv) couponUsed(t *testing.T, id uint) int64 {
	t.Helper()
	var cp model.CouponCode
	require.NoError(t, e.db.First(&cp, id).Error)
	return cp.Used
}

func (e *testEnv) reload(t *testing.T, orderNo string) *model.Order {
	t.Helper()
	o, err := e.svc.Get(context.Background(), orderNo, 0)
	require.NoError(t, err)
	return o
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "25.00", 10)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, order.CreateInput{
		UserID:  1,
		Address: "北京市海淀区 1 号",
		Remark:  "尽快发货",
		Items:   []order.LineInput{{SkuID: sku.ID, Amount: 2}},
	})
	require.NoError(t, err)
	assert.Len(t, o.No, 20)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(50)), "total = %s", o.TotalAmount)
	assert.Equal(t, model.ShipStatusPending, o.ShipStatus)
	assert.Equal(t, model.RefundStatusPending, o.RefundStatus)
	assert.Nil(t, o.PaidAt)
	assert.False(t, o.Closed)
	require.Len(t, o.Items, 1)
	assert.Equal(t, sku.ID, o.Items[0].ProductSkuID)
	assert.True(t, o.Items[0].Price.Equal(sku.Price))

	// 库存已预留，关单任务已调度
	assert.EqualValues(t, 8, env.skuStock(t, sku.ID))
	require.Len(t, env.scheduler.calls, 1)
	assert.Equal(t, o.No, env.scheduler.calls[0])
	assert.Equal(t, 30*time.Minute, env.scheduler.delay)
}

// 固定金额券：50 减 10 得 40，用量变 1；同券第二次兑换失败。
func TestCreateOrderWithFixedCoupon(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "25.00", 10)
	cp := env.newCoupon(t, nil)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, order.CreateInput{
		UserID:     1,
		Address:    "上海市浦东新区 2 号",
		Items:      []order.LineInput{{SkuID: sku.ID, Amount: 2}},
		CouponCode: cp.Code,
	})
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(40)), "total = %s", o.TotalAmount)
	require.NotNil(t, o.CouponCodeID)
	assert.Equal(t, cp.ID, *o.CouponCodeID)
	assert.EqualValues(t, 1, env.couponUsed(t, cp.ID))

	// total=1 已用完，其他用户再兑换失败
	_, err = env.svc.Create(ctx, order.CreateInput{
		UserID:     2,
		Address:    "广州市天河区 3 号",
		Items:      []order.LineInput{{SkuID: sku.ID, Amount: 1}},
		CouponCode: cp.Code,
	})
	var unavailable *coupon.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.EqualValues(t, 1, env.couponUsed(t, cp.ID))
}

func TestCreateOrderPercentCouponRounding(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "33.33", 10)
	cp := env.newCoupon(t, func(c *model.CouponCode) {
		c.Type = model.CouponTypePercent
		c.Value = decimal.NewFromInt(10)
		c.Total = 5
	})
	ctx := context.Background()

	o, err := env.svc.Create(ctx, order.CreateInput{
		UserID:     1,
		Address:    "address",
		Items:      []order.LineInput{{SkuID: sku.ID, Amount: 1}},
		CouponCode: cp.Code,
	})
	require.NoError(t, err)
	// 33.33 * 90% = 29.997 → 30.00
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(30)), "total = %s", o.TotalAmount)
}

func TestCreateOrderCouponReuseBlocked(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "25.00", 10)
	cp := env.newCoupon(t, func(c *model.CouponCode) { c.Total = 10 })
	ctx := context.Background()

	_, err := env.svc.Create(ctx, order.CreateInput{
		UserID:     1,
		Address:    "address",
		Items:      []order.LineInput{{SkuID: sku.ID, Amount: 1}},
		CouponCode: cp.Code,
	})
	require.NoError(t, err)

	// 同一用户已有一张未支付未关闭的订单占用该券
	_, err = env.svc.Create(ctx, order.CreateInput{
		UserID:     1,
		Address:    "address",
		Items:      []order.LineInput{{SkuID: sku.ID, Amount: 1}},
		CouponCode: cp.Code,
	})
	var unavailable *coupon.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "你已使用过这张优惠券", unavailable.Reason)
}

func TestCreateOrderBelowCouponMinAmount(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "25.00", 10)
	cp := env.newCoupon(t, func(c *model.CouponCode) {
		c.MinAmount = decimal.NewFromInt(100)
	})
	ctx := context.Background()

	_, err := env.svc.Create(ctx, order.CreateInput{
		UserID:     1,
		Address:    "address",
		Items:      []order.LineInput{{SkuID: sku.ID, Amount: 2}},
		CouponCode: cp.Code,
	})
	var unavailable *coupon.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "订单金额未达到优惠券最低金额", unavailable.Reason)
	// 整体回滚：库存与用量均未变
	assert.EqualValues(t, 10, env.skuStock(t, sku.ID))
	assert.EqualValues(t, 0, env.couponUsed(t, cp.ID))
}

// 任一行预留失败，整个事务回滚：先成功预留的行也要还原。
func TestCreateOrderRollsBackAllReservations(t *testing.T) {
	env := newTestEnv(t)
	plenty := env.newSku(t, "10.00", 10)
	scarce := env.newSku(t, "20.00", 1)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, order.CreateInput{
		UserID:  1,
		Address: "address",
		Items: []order.LineInput{
			{SkuID: plenty.ID, Amount: 3},
			{SkuID: scarce.ID, Amount: 2},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stock.ErrInsufficientStock))

	assert.EqualValues(t, 10, env.skuStock(t, plenty.ID))
	assert.EqualValues(t, 1, env.skuStock(t, scarce.ID))
	var n int64
	require.NoError(t, env.db.Model(&model.Order{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
	assert.Empty(t, env.scheduler.calls)
}

// 库存 5，两个并发订单各要 3：恰好一单成功，另一单库存不足，剩余库存 2。
func TestConcurrentOrdersOnScarceStock(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "10.00", 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.svc.Create(ctx, order.CreateInput{
				UserID:  int64(i + 1),
				Address: "address",
				Items:   []order.LineInput{{SkuID: sku.ID, Amount: 3}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.Is(err, stock.ErrInsufficientStock))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 2, env.skuStock(t, sku.ID))
}

func TestMarkPaid(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "10.00", 5)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, order.CreateInput{
		UserID:  1,
		Address: "address",
		Items:   []order.LineInput{{SkuID: sku.ID, Amount: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.MarkPaid(ctx, o.No, "stripe", "pi_123"))
	got := env.reload(t, o.No)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, "stripe", got.PaymentMethod)
	assert.Equal(t, "pi_123", got.PaymentNo)
	assert.Equal(t, []string{o.No}, env.events.paid)

	// 重复回调不命中条件更新
	err = env.svc.MarkPaid(ctx, o.No, "stripe", "pi_456")
	var stateErr *order.InvalidStateError
	require.True(t, errors.As(err, &stateErr))
	got = env.reload(t, o.No)
	assert.Equal(t, "pi_123", got.PaymentNo)
}
