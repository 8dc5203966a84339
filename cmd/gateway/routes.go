package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tillpoint/config"
	"tillpoint/internal/cache"
	"tillpoint/internal/database"
	"tillpoint/internal/gateway/handlers"
	"tillpoint/internal/gateway/middleware"
	"tillpoint/internal/settlement"
	"tillpoint/internal/store/gormstore"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	store := gormstore.New(db)
	converter := settlement.NewConverter(store, cache.NewRedisCache(rdb))
	engine := settlement.NewEngine(store, converter, settlement.NoopProcessor{})
	settlementHandler := handlers.NewSettlementHTTPHandler(engine, store)

	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit("60-M"))

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth([]byte(cfg.Auth.JWTSecret)))
	{
		payments := protected.Group("/payments")
		{
			payments.POST("", settlementHandler.CreatePayment)
			payments.GET("/:id", settlementHandler.GetPayment)
		}

		orders := protected.Group("/orders")
		{
			orders.GET("/:id", settlementHandler.GetOrder)
			orders.POST("/:id/process", settlementHandler.ProcessOrder)
			orders.POST("/:id/discount", settlementHandler.ApplyDiscount)
		}

		cash := protected.Group("/cash")
		{
			cash.POST("/opening", settlementHandler.CashOpening)
			cash.POST("/withdrawal", settlementHandler.CashWithdrawal)
			cash.POST("/closing", settlementHandler.CashClosing)
			cash.GET("/sessions/:id", settlementHandler.GetCashSession)
		}

		pos := protected.Group("/pos")
		{
			pos.POST("/:id/validate-pin", settlementHandler.ValidatePIN)
			pos.POST("/:id/sellers", settlementHandler.AllocateSeller)
			pos.DELETE("/:id/sellers/:user_id", settlementHandler.DeallocateSeller)
		}
	}

	r.GET("/health", healthCheckHandler(db))

	port := ":" + cfg.Gateway.Port
	log.Printf("Starting server on port %s", port)
	if err := r.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func healthCheckHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		httpStatus := http.StatusOK

		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"message":   "Server is running",
			"timestamp": time.Now(),
		})
	}
}
