package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chronora/internal/auth"
	"chronora/internal/handler"
	"chronora/internal/repository"
	"chronora/internal/repository/memory"
	"chronora/internal/service"
	"chronora/pkg/config"
	"chronora/pkg/database"
	"chronora/pkg/logger"
	"chronora/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// stores is the set of repositories behind the services
type stores struct {
	products repository.ProductRepository
	offers   repository.OfferRepository
	coupons  repository.CouponRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	carts    repository.CartRepository
	uow      service.UnitOfWork
}

func main() {
	log := logger.New("info")

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	var st stores
	switch cfg.StoreMode {
	case "memory":
		mem := memory.NewStore()
		st = stores{mem, mem, mem, mem, mem, mem, database.NoTransaction{}}
		if cfg.SeedDemo {
			seedDemo(mem, auth.NewManager(cfg.JWTSecret, cfg.JWTTTL), log)
		}
		log.Warn("Running with the in-memory store, data is lost on restart")
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoDB, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			if err := mongoDB.Disconnect(context.Background()); err != nil {
				log.Errorf("Error disconnecting from MongoDB: %v", err)
			}
		}()
		log.Info("Connected to MongoDB successfully")

		var uow service.UnitOfWork = database.NoTransaction{}
		if cfg.MongoTransactions {
			uow = database.NewUnitOfWork(mongoDB.Client)
		}
		st = stores{
			products: repository.NewProductRepository(mongoDB.Database),
			offers:   repository.NewOfferRepository(mongoDB.Database),
			coupons:  repository.NewCouponRepository(mongoDB.Database),
			orders:   repository.NewOrderRepository(mongoDB.Database),
			users:    repository.NewUserRepository(mongoDB.Database),
			carts:    repository.NewCartRepository(mongoDB.Database),
			uow:      uow,
		}
	default:
		log.Fatalf("Unknown STORE_MODE '%s', expected mongo or memory", cfg.StoreMode)
	}

	var gateway payment.Gateway
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gateway = payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	} else {
		log.Warn("Razorpay keys not set, online payments are disabled")
	}

	svc := buildServices(st, gateway, cfg, log)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(svc, handler.RouterConfig{
		Tokens:      auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func buildServices(st stores, gateway payment.Gateway, cfg *config.Config, log *logrus.Logger) handler.Services {
	pricing := service.NewPricingService(st.products, st.offers, log)
	carts := service.NewCartService(st.carts, st.products, pricing, log)
	orders := service.NewOrderService(service.OrderDeps{
		Orders:     st.orders,
		Users:      st.users,
		Carts:      st.carts,
		Coupons:    st.coupons,
		Pricing:    pricing,
		Stock:      service.NewStockLedger(st.products, log),
		Settlement: service.NewSettlementService(st.users, gateway, log),
		Gateway:    gateway,
		UnitOfWork: st.uow,
	}, service.OrderOptions{
		Currency:              cfg.Currency,
		CODLimit:              cfg.CODLimit,
		DeliveryCharge:        cfg.DeliveryCharge,
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
	}, log)

	return handler.Services{
		Orders:  orders,
		Coupons: service.NewCouponService(st.coupons, log),
		Offers:  service.NewOfferService(st.offers, st.products, log),
		Pricing: pricing,
		Carts:   carts,
		Wallet:  service.NewWalletService(st.users),
	}
}
