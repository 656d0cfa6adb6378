package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go_shop/internal/config"
	"go_shop/internal/coupon"
	"go_shop/internal/middleware"
	"go_shop/internal/model"
	"go_shop/internal/order"
	"go_shop/internal/payment"
	"go_shop/internal/stock"
)

// Setup 注册全部 HTTP 路由。
// 认证不在本服务范围内：用户身份由请求携带 user_id，管理接口校验共享令牌。
func Setup(r *gin.Engine, db *gorm.DB, rdb *rd.Client, svc *order.Service, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// Products
	r.GET("/api/products", listProducts(db))
	r.GET("/api/products/:id", showProduct(db))
	r.POST("/api/products/:id/favor", favorProduct(db))
	r.DELETE("/api/products/:id/favor", disfavorProduct(db))
	r.GET("/api/favorites", listFavorites(db))

	// Coupons
	r.GET("/api/coupon_codes/:code", checkCoupon(db))

	// Orders
	r.POST("/api/orders", middleware.RedisRateLimit(rdb, cfg.OrderRateLimit, cfg.OrderRateWindow), createOrder(svc))
	r.GET("/api/orders", listOrders(db))
	r.GET("/api/orders/:no", showOrder(svc))
	r.POST("/api/orders/:no/received", receivedOrder(svc))
	r.POST("/api/orders/:no/review", reviewOrder(svc))
	r.POST("/api/orders/:no/apply_refund", applyRefund(svc))

	// 支付渠道回调
	r.POST("/api/webhooks/payment", paymentWebhook(svc))

	// Admin
	admin := r.Group("/api/admin", adminAuth(cfg.AdminToken))
	admin.POST("/products", createProduct(db))
	admin.PUT("/products/:id", updateProduct(db))
	admin.POST("/coupon_codes", createCoupon(db))
	admin.POST("/orders/:no/ship", shipOrder(svc))
	admin.POST("/orders/:no/refund", handleRefund(svc))
}

// adminAuth 简单管理员令牌校验。
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		c.Next()
	}
}

// respondErr 将错误映射为响应：业务校验失败 4xx，服务端缺陷 5xx。
func respondErr(c *gin.Context, err error) {
	var couponErr *coupon.UnavailableError
	var stateErr *order.InvalidStateError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "订单不存在"})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": couponErr.Reason})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": stateErr.Reason})
	case errors.Is(err, stock.ErrInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "库存不足"})
	case errors.Is(err, stock.ErrSkuNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商品不存在"})
	case errors.Is(err, payment.ErrUnknownPaymentMethod):
		// 配置缺陷，不能当业务失败吞掉
		log.Error().Err(err).Msg("router: unknown payment method")
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "internal error"})
	default:
		log.Error().Err(err).Msg("router: internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
	}
}

// listProducts 查询在售商品，支持关键字搜索与排序。
func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Model(&model.Product{}).Where("on_sale = ?", true)

		if search := c.Query("search"); search != "" {
			like := "%" + search + "%"
			q = q.Where(
				"title LIKE ? OR description LIKE ? OR id IN (?)",
				like, like,
				db.Model(&model.ProductSku{}).Select("product_id").
					Where("title LIKE ? OR description LIKE ?", like, like),
			)
		}

		switch c.Query("order") {
		case "price_asc":
			q = q.Order("price asc")
		case "price_desc":
			q = q.Order("price desc")
		case "sold_count_asc":
			q = q.Order("sold_count asc")
		case "sold_count_desc":
			q = q.Order("sold_count desc")
		case "rating_asc":
			q = q.Order("rating asc")
		case "rating_desc":
			q = q.Order("rating desc")
		}

		var list []model.Product
		if err := q.Preload("Skus").Find(&list).Error; err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// showProduct 商品详情 + 最近 10 条评价。
func showProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商品ID无效"})
			return
		}
		var p model.Product
		if err := db.Preload("Skus").First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
				return
			}
			respondErr(c, err)
			return
		}
		if !p.OnSale {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商品未上架"})
			return
		}

		var reviews []model.OrderItem
		err = db.Where("product_id = ? AND reviewed_at IS NOT NULL", p.ID).
			Order("reviewed_at desc").Limit(10).Find(&reviews).Error
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"product": p, "reviews": reviews}})
	}
}

// checkCoupon 查询优惠券可用性。user_id / amount 可选，传入时一并校验。
func checkCoupon(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cp model.CouponCode
		if err := db.Where("code = ?", c.Param("code")).First(&cp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "优惠券不存在"})
				return
			}
			respondErr(c, err)
			return
		}

		userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)
		var amount *decimal.Decimal
		if raw := c.Query("amount"); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "amount 格式错误"})
				return
			}
			amount = &d
		}
		if err := coupon.CheckAvailable(db, &cp, userID, amount); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"code":        cp.Code,
			"description": cp.Description(),
		}})
	}
}

// createOrder 下单入口，核心逻辑在 order.Service.Create 的事务里。
func createOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID     int64  `json:"user_id" binding:"required,min=1"`
			Address    string `json:"address" binding:"required"`
			Remark     string `json:"remark"`
			CouponCode string `json:"coupon_code"`
			Items      []struct {
				SkuID  uint `json:"sku_id" binding:"required,min=1"`
				Amount int  `json:"amount" binding:"required,min=1"`
			} `json:"items" binding:"required,min=1,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		in := order.CreateInput{
			UserID:     req.UserID,
			Address:    req.Address,
			Remark:     req.Remark,
			CouponCode: req.CouponCode,
		}
		for _, item := range req.Items {
			in.Items = append(in.Items, order.LineInput{SkuID: item.SkuID, Amount: item.Amount})
		}

		o, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

// listOrders 用户订单列表，最新在前。
func listOrders(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "user_id 必填"})
			return
		}
		var list []model.Order
		err = db.Preload("Items").Where("user_id = ?", userID).
			Order("created_at desc").Find(&list).Error
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func showOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)
		o, err := svc.Get(c.Request.Context(), c.Param("no"), userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

func receivedOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID int64 `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		o, err := svc.Received(c.Request.Context(), c.Param("no"), req.UserID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

func reviewOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID  int64 `json:"user_id" binding:"required,min=1"`
			Reviews []struct {
				ItemID uint   `json:"item_id" binding:"required,min=1"`
				Rating int    `json:"rating" binding:"required,min=1,max=5"`
				Review string `json:"review"`
			} `json:"reviews" binding:"required,min=1,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		reviews := make([]order.ReviewInput, 0, len(req.Reviews))
		for _, r := range req.Reviews {
			reviews = append(reviews, order.ReviewInput{ItemID: r.ItemID, Rating: r.Rating, Review: r.Review})
		}
		if err := svc.SendReview(c.Request.Context(), c.Param("no"), req.UserID, reviews); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "评价成功"})
	}
}

func applyRefund(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID int64  `json:"user_id" binding:"required,min=1"`
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		o, err := svc.ApplyRefund(c.Request.Context(), c.Param("no"), req.UserID, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

// paymentWebhook 支付渠道回调，标记订单已支付。
// 与延迟关单的竞争由 MarkPaid 的条件更新裁决。
func paymentWebhook(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderNo       string `json:"order_no" binding:"required"`
			PaymentMethod string `json:"payment_method" binding:"required"`
			PaymentNo     string `json:"payment_no" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		err := svc.MarkPaid(c.Request.Context(), req.OrderNo, req.PaymentMethod, req.PaymentNo)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "success"})
	}
}

func shipOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ExpressCompany string `json:"express_company" binding:"required"`
			ExpressNo      string `json:"express_no" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		o, err := svc.Ship(c.Request.Context(), c.Param("no"), req.ExpressCompany, req.ExpressNo)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

func handleRefund(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Agree  bool   `json:"agree"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if !req.Agree && req.Reason == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "拒绝退款必须填写理由"})
			return
		}
		o, err := svc.HandleRefund(c.Request.Context(), c.Param("no"), req.Agree, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

// skuRequest 创建 / 编辑商品时的 SKU 描述。
type skuRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Stock       int64           `json:"stock"`
}

// validateSkus 校验 SKU 列表，失败时写入响应并返回 false。
func validateSkus(c *gin.Context, skus []skuRequest) bool {
	for _, sku := range skus {
		if !sku.Price.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "SKU 价格必须大于 0"})
			return false
		}
		if sku.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "SKU 库存不能为负"})
			return false
		}
	}
	return true
}

// minSkuPrice SKU 最低价，作为商品展示价。
func minSkuPrice(skus []skuRequest) decimal.Decimal {
	min := skus[0].Price
	for _, sku := range skus[1:] {
		if sku.Price.LessThan(min) {
			min = sku.Price
		}
	}
	return min
}

// createProduct 管理员创建商品（含 SKU）。
// 展示价取 SKU 最低价，与 SKU 一起在同一事务内落库。
func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title       string       `json:"title" binding:"required"`
			Description string       `json:"description"`
			OnSale      *bool        `json:"on_sale"`
			Skus        []skuRequest `json:"skus" binding:"required,min=1,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if !validateSkus(c, req.Skus) {
			return
		}

		p := &model.Product{
			Title:       req.Title,
			Description: req.Description,
			OnSale:      true,
			Price:       minSkuPrice(req.Skus),
		}
		if req.OnSale != nil {
			p.OnSale = *req.OnSale
		}
		for _, sku := range req.Skus {
			p.Skus = append(p.Skus, model.ProductSku{
				Title:       sku.Title,
				Description: sku.Description,
				Price:       sku.Price,
				Stock:       sku.Stock,
			})
		}
		if err := db.Create(p).Error; err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

// updateProduct 管理员编辑商品：整体替换 SKU，并在同一事务内按
// 最新 SKU 的最低价重算展示价。
// 旧 SKU 软删除，订单行上的价格与数量快照不受影响。
func updateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商品ID无效"})
			return
		}
		var req struct {
			Title       string       `json:"title" binding:"required"`
			Description string       `json:"description"`
			OnSale      *bool        `json:"on_sale"`
			Skus        []skuRequest `json:"skus" binding:"required,min=1,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if !validateSkus(c, req.Skus) {
			return
		}

		var p model.Product
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&p, id).Error; err != nil {
				return err
			}
			p.Title = req.Title
			p.Description = req.Description
			if req.OnSale != nil {
				p.OnSale = *req.OnSale
			}
			p.Price = minSkuPrice(req.Skus)

			if err := tx.Where("product_id = ?", p.ID).Delete(&model.ProductSku{}).Error; err != nil {
				return fmt.Errorf("router: delete old skus: %w", err)
			}
			skus := make([]model.ProductSku, 0, len(req.Skus))
			for _, sku := range req.Skus {
				skus = append(skus, model.ProductSku{
					ProductID:   p.ID,
					Title:       sku.Title,
					Description: sku.Description,
					Price:       sku.Price,
					Stock:       sku.Stock,
				})
			}
			if err := tx.Create(&skus).Error; err != nil {
				return fmt.Errorf("router: create skus: %w", err)
			}
			p.Skus = skus

			err := tx.Model(&model.Product{}).Where("id = ?", p.ID).
				Select("title", "description", "on_sale", "price").
				Updates(&p).Error
			if err != nil {
				return fmt.Errorf("router: update product: %w", err)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
				return
			}
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

// favorProduct 收藏商品，重复收藏幂等。
func favorProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商品ID无效"})
			return
		}
		var req struct {
			UserID int64 `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		var p model.Product
		if err := db.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
				return
			}
			respondErr(c, err)
			return
		}

		var fav model.Favorite
		err = db.Where("user_id = ? AND product_id = ?", req.UserID, p.ID).
			FirstOrCreate(&fav, model.Favorite{UserID: req.UserID, ProductID: p.ID}).Error
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "收藏成功"})
	}
}

// disfavorProduct 取消收藏，未收藏过也按成功处理。
func disfavorProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "商品ID无效"})
			return
		}
		var req struct {
			UserID int64 `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		err = db.Where("user_id = ? AND product_id = ?", req.UserID, id).
			Delete(&model.Favorite{}).Error
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "已取消收藏"})
	}
}

// listFavorites 用户收藏的商品列表，最新收藏在前。
func listFavorites(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "user_id 必填"})
			return
		}

		var productIDs []uint
		err = db.Model(&model.Favorite{}).Where("user_id = ?", userID).
			Order("created_at desc").Pluck("product_id", &productIDs).Error
		if err != nil {
			respondErr(c, err)
			return
		}

		list := make([]model.Product, 0, len(productIDs))
		if len(productIDs) > 0 {
			if err := db.Preload("Skus").Where("id IN ?", productIDs).Find(&list).Error; err != nil {
				respondErr(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createCoupon 管理员创建优惠券，券码随机生成并查重。
func createCoupon(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name      string          `json:"name" binding:"required"`
			Type      string          `json:"type" binding:"required,oneof=fixed percent"`
			Value     decimal.Decimal `json:"value" binding:"required"`
			Total     int64           `json:"total" binding:"required,min=1"`
			MinAmount decimal.Decimal `json:"min_amount"`
			NotBefore string          `json:"not_before"`
			NotAfter  string          `json:"not_after"`
			Enabled   bool            `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if !req.Value.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "优惠值必须大于 0"})
			return
		}
		if req.Type == model.CouponTypePercent && req.Value.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "折扣比例必须小于 100"})
			return
		}

		cp := &model.CouponCode{
			Name:      req.Name,
			Type:      req.Type,
			Value:     req.Value,
			Total:     req.Total,
			MinAmount: req.MinAmount,
			Enabled:   req.Enabled,
		}
		if req.NotBefore != "" {
			t, err := time.Parse(time.RFC3339, req.NotBefore)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "not_before 格式错误，请用 RFC3339"})
				return
			}
			cp.NotBefore = &t
		}
		if req.NotAfter != "" {
			t, err := time.Parse(time.RFC3339, req.NotAfter)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "not_after 格式错误，请用 RFC3339"})
				return
			}
			cp.NotAfter = &t
		}
		if cp.NotBefore != nil && cp.NotAfter != nil && !cp.NotAfter.After(*cp.NotBefore) {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "not_after 必须晚于 not_before"})
			return
		}

		code, err := coupon.GenerateCode(db, 16)
		if err != nil {
			respondErr(c, err)
			return
		}
		cp.Code = code
		if err := db.Create(cp).Error; err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": cp})
	}
}
