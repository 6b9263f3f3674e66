package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"loan-engine/internal/config"
	"loan-engine/internal/domain"
	"loan-engine/internal/handler"
	"loan-engine/internal/middleware"
	"loan-engine/internal/processor"
	"loan-engine/internal/repository"
	"loan-engine/internal/service"
	"loan-engine/pkg/logger"
)

// @title Loan Engine API
// @version 1.0
// @description Loan accounting core: applications, disbursement, repayment schedules, charges and transaction processing
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@loan-engine.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting Loan Engine Service")

	// Connect to database
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	logger.GetLogger().Info("Database connection established")

	// Initialize repositories and the strategy registry
	loanRepo := repository.NewLoanRepository(db)
	registry := processor.NewRegistry()
	accounting := service.NewLoggingAccountingBridge()

	// Initialize services
	defaultCurrency := domain.Currency{Code: cfg.App.DefaultCurrencyCode, DecimalPlaces: cfg.App.DefaultCurrencyPlaces}
	loanService := service.NewLoanService(loanRepo, registry, accounting, defaultCurrency)
	txService := service.NewTransactionService(loanRepo, registry, accounting)

	// Initialize handlers
	loanHandler := handler.NewLoanHandler(loanService)
	txHandler := handler.NewTransactionHandler(txService)
	batchHandler := handler.NewBatchHandler(loanRepo, registry, txService)

	// Setup router
	router := setupRouter(loanHandler, txHandler, batchHandler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("Server starting")

	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to start server")
	}
}

func connectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func setupRouter(loanHandler *handler.LoanHandler, txHandler *handler.TransactionHandler, batchHandler *handler.BatchHandler) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/strategies", loanHandler.ListStrategies)

		loans := v1.Group("/loans")
		{
			loans.POST("", loanHandler.SubmitApplication)
			loans.GET("/:loan_id", loanHandler.GetLoan)
			loans.POST("/:loan_id/approve", loanHandler.Approve)
			loans.POST("/:loan_id/undo-approval", loanHandler.UndoApproval)
			loans.POST("/:loan_id/reject", loanHandler.Reject)
			loans.POST("/:loan_id/withdraw", loanHandler.Withdraw)
			loans.POST("/:loan_id/disburse", loanHandler.Disburse)
			loans.POST("/:loan_id/undo-disbursal", loanHandler.UndoDisbursal)

			loans.POST("/:loan_id/charges", loanHandler.AddCharge)
			loans.DELETE("/:loan_id/charges/:charge_id", loanHandler.RemoveCharge)
			loans.POST("/:loan_id/charges/:charge_id/waive", loanHandler.WaiveCharge)

			loans.POST("/:loan_id/repayments", txHandler.MakeRepayment)
			loans.POST("/:loan_id/waive-interest", txHandler.WaiveInterest)
			loans.POST("/:loan_id/transactions/:transaction_id/adjust", txHandler.AdjustTransaction)
			loans.POST("/:loan_id/write-off", txHandler.WriteOff)
			loans.POST("/:loan_id/close", txHandler.Close)
			loans.POST("/:loan_id/close-rescheduled", txHandler.CloseAsRescheduled)
			loans.POST("/:loan_id/recovery-payments", txHandler.RecoveryPayment)
			loans.POST("/:loan_id/refunds", txHandler.Refund)
		}

		batchGroup := v1.Group("/batch")
		{
			batchGroup.POST("/holidays", batchHandler.ApplyHoliday)
			batchGroup.POST("/reprocess", batchHandler.ReprocessLoans)
			batchGroup.POST("/repayments", batchHandler.ImportRepayments)
		}
	}

	return router
}
