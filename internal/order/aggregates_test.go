package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_shop/internal/model"
	"go_shop/internal/order"
)

func TestSyncSoldCount(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "10.00", 100)
	ctx := context.Background()

	// 两单已支付、一单未支付：销量只计已支付的
	var paidNos []string
	for i := 0; i < 2; i++ {
		o, err := env.svc.Create(ctx, order.CreateInput{
			UserID:  int64(i + 1),
			Address: "address",
			Items:   []order.LineInput{{SkuID: sku.ID, Amount: 3}},
		})
		require.NoError(t, err)
		require.NoError(t, env.svc.MarkPaid(ctx, o.No, "stripe", "pi_"+o.No))
		paidNos = append(paidNos, o.No)
	}
	_, err := env.svc.Create(ctx, order.CreateInput{
		UserID:  3,
		Address: "address",
		Items:   []order.LineInput{{SkuID: sku.ID, Amount: 5}},
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.SyncSoldCount(ctx, paidNos[0]))
	var p model.Product
	require.NoError(t, env.db.First(&p, sku.ProductID).Error)
	assert.EqualValues(t, 6, p.SoldCount)

	// 全量重算：重复触发结果不变
	require.NoError(t, env.svc.SyncSoldCount(ctx, paidNos[1]))
	require.NoError(t, env.db.First(&p, sku.ProductID).Error)
	assert.EqualValues(t, 6, p.SoldCount)
}

func TestSyncRating(t *testing.T) {
	env := newTestEnv(t)
	sku := env.newSku(t, "10.00", 100)
	ctx := context.Background()

	ratings := []int{5, 3}
	var nos []string
	for i, r := range ratings {
		o, err := env.svc.Create(ctx, order.CreateInput{
			UserID:  int64(i + 1),
			Address: "address",
			Items:   []order.LineInput{{SkuID: sku.ID, Amount: 1}},
		})
		require.NoError(t, err)
		require.NoError(t, env.svc.MarkPaid(ctx, o.No, "stripe", "pi_"+o.No))
		stored := env.reload(t, o.No)
		require.NoError(t, env.svc.SendReview(ctx, o.No, int64(i+1), []order.ReviewInput{
			{ItemID: stored.Items[0].ID, Rating: r, Review: "还行"},
		}))
		nos = append(nos, o.No)
	}

	require.NoError(t, env.svc.SyncRating(ctx, nos[1]))
	var p model.Product
	require.NoError(t, env.db.First(&p, sku.ProductID).Error)
	assert.InDelta(t, 4.0, p.Rating, 0.001)
	assert.EqualValues(t, 2, p.ReviewCount)
}
