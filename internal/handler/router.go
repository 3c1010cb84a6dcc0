package handler

import (
	"net/http"
	"time"

	"chronora/internal/auth"
	"chronora/internal/middleware"
	"chronora/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Services are the use cases exposed over HTTP
type Services struct {
	Orders  *service.OrderService
	Coupons *service.CouponService
	Offers  *service.OfferService
	Pricing *service.PricingService
	Carts   *service.CartService
	Wallet  *service.WalletService
}

// RouterConfig carries the transport settings
type RouterConfig struct {
	Tokens      *auth.Manager
	CORSOrigins []string
	Logger      *logrus.Logger
}

func NewRouter(svc Services, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(log))

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.Tokens, log))
	{
		api.GET("/products/:id/price", getPriceHandler(svc.Pricing, log))

		api.GET("/cart", getCartHandler(svc.Carts, log))
		api.PUT("/cart/items", setCartItemHandler(svc.Carts, log))

		api.GET("/coupons", listCouponsHandler(svc.Coupons, log))
		api.POST("/coupons/apply", applyCouponHandler(svc.Coupons, svc.Carts, log))

		api.POST("/orders", placeOrderHandler(svc.Orders, svc.Carts, log))
		api.GET("/orders", listMyOrdersHandler(svc.Orders, log))
		api.GET("/orders/:id", getOrderHandler(svc.Orders, log))
		api.POST("/orders/:id/payment/verify", verifyPaymentHandler(svc.Orders, log))
		api.POST("/orders/:id/cancel", requestCancelHandler(svc.Orders, log))
		api.POST("/orders/:id/items/:index/cancel", cancelItemHandler(svc.Orders, log))
		api.POST("/orders/:id/items/:index/return", requestReturnHandler(svc.Orders, log))

		api.GET("/wallet", getWalletHandler(svc.Wallet, log))

		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(auth.RoleAdmin))
		{
			admin.GET("/coupons", listAllCouponsHandler(svc.Coupons, log))
			admin.POST("/coupons", createCouponHandler(svc.Coupons, log))
			admin.POST("/offers", createOfferHandler(svc.Offers, log))

			admin.GET("/orders", listOrdersHandler(svc.Orders, log))
			admin.GET("/orders/:id", getOrderAdminHandler(svc.Orders, log))
			admin.PATCH("/orders/:id/status", updateOrderStatusHandler(svc.Orders, log))
			admin.PATCH("/orders/:id/items/:index/status", updateItemStatusHandler(svc.Orders, log))
			admin.POST("/orders/:id/cancel/approve", approveCancelHandler(svc.Orders, log))
			admin.POST("/orders/:id/cancel/reject", rejectCancelHandler(svc.Orders, log))
			admin.POST("/orders/:id/items/:index/return/approve", approveReturnHandler(svc.Orders, log))
			admin.POST("/orders/:id/items/:index/return/reject", rejectReturnHandler(svc.Orders, log))
			admin.POST("/orders/:id/items/:index/returned", markReturnedHandler(svc.Orders, log))
		}
	}

	return router
}
