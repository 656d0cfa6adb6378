package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go_shop/internal/config"
	"go_shop/internal/model"
	"go_shop/internal/order"
	"go_shop/internal/payment"
	"go_shop/internal/router"
)

const testAdminToken = "test-admin-token"

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Product{}, &model.ProductSku{}, &model.CouponCode{},
		&model.Order{}, &model.OrderItem{}, &model.Favorite{},
	))

	svc := order.NewService(db, payment.NewRegistry(), nil, nil, 30*time.Minute)
	r := gin.New()
	router.Setup(r, db, nil, svc, config.AppConfig{
		AdminToken:      testAdminToken,
		OrderRateLimit:  100,
		OrderRateWindow: time.Second,
	})
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Token", testAdminToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createProductViaAPI(t *testing.T, r *gin.Engine) uint {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/admin/products", gin.H{
		"title": "手机",
		"skus": []gin.H{
			{"title": "128G", "price": "30.00", "stock": 10},
			{"title": "64G", "price": "20.00", "stock": 5},
		},
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data model.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotZero(t, resp.Data.ID)
	return resp.Data.ID
}

func TestAdminCreateProductPriceIsMinSku(t *testing.T) {
	r, db := newTestRouter(t)
	id := createProductViaAPI(t, r)

	var p model.Product
	require.NoError(t, db.Preload("Skus").First(&p, id).Error)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(20)), "price = %s", p.Price)
	assert.Len(t, p.Skus, 2)
}

// 编辑商品：整体替换 SKU，展示价在同一事务内重算为新 SKU 的最低价。
func TestAdminUpdateProductReplacesSkus(t *testing.T) {
	r, db := newTestRouter(t)
	id := createProductViaAPI(t, r)

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/admin/products/%d", id), gin.H{
		"title":   "手机（新款）",
		"on_sale": false,
		"skus": []gin.H{
			{"title": "256G", "price": "50.00", "stock": 8},
			{"title": "512G", "price": "45.00", "stock": 3},
		},
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p model.Product
	require.NoError(t, db.Preload("Skus").First(&p, id).Error)
	assert.Equal(t, "手机（新款）", p.Title)
	assert.False(t, p.OnSale)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(45)), "price = %s", p.Price)

	// 旧 SKU 已软删除，只剩新的两个
	require.Len(t, p.Skus, 2)
	titles := []string{p.Skus[0].Title, p.Skus[1].Title}
	assert.ElementsMatch(t, []string{"256G", "512G"}, titles)
	var total int64
	require.NoError(t, db.Unscoped().Model(&model.ProductSku{}).
		Where("product_id = ?", id).Count(&total).Error)
	assert.EqualValues(t, 4, total)
}

func TestAdminUpdateProductNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPut, "/api/admin/products/999", gin.H{
		"title": "不存在",
		"skus":  []gin.H{{"title": "默认", "price": "10.00", "stock": 1}},
	}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPut, "/api/admin/products/1", gin.H{
		"title": "无令牌",
		"skus":  []gin.H{{"title": "默认", "price": "10.00", "stock": 1}},
	}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFavorites(t *testing.T) {
	r, db := newTestRouter(t)
	id := createProductViaAPI(t, r)

	// 收藏 + 重复收藏幂等
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/products/%d/favor", id), gin.H{"user_id": 1}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/products/%d/favor", id), gin.H{"user_id": 1}, false)
	require.Equal(t, http.StatusOK, w.Code)
	var n int64
	require.NoError(t, db.Model(&model.Favorite{}).Where("user_id = ?", 1).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	// 收藏列表只含该用户的商品
	w = doJSON(t, r, http.MethodGet, "/api/favorites?user_id=1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []model.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, id, resp.Data[0].ID)

	w = doJSON(t, r, http.MethodGet, "/api/favorites?user_id=2", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	resp.Data = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)

	// 取消收藏
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/products/%d/favor", id), gin.H{"user_id": 1}, false)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.Model(&model.Favorite{}).Where("user_id = ?", 1).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestFavorUnknownProduct(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/products/999/favor", gin.H{"user_id": 1}, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
