package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reckot/payments/internal"
	bookingpg "github.com/reckot/payments/internal/booking/postgres"
	"github.com/reckot/payments/internal/core/events"
	"github.com/reckot/payments/internal/gateway"
	"github.com/reckot/payments/internal/invoice"
	invoicepg "github.com/reckot/payments/internal/invoice/postgres"
	"github.com/reckot/payments/internal/payment"
	paymentpg "github.com/reckot/payments/internal/payment/postgres"
	"github.com/reckot/payments/internal/refund"
	refundpg "github.com/reckot/payments/internal/refund/postgres"
	"github.com/reckot/payments/internal/transport"
	"github.com/reckot/payments/internal/transport/rest"
	"github.com/reckot/payments/internal/withdrawal"
	withdrawalpg "github.com/reckot/payments/internal/withdrawal/postgres"
	"github.com/reckot/payments/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Router     *chi.Mux
	Dispatcher *withdrawal.Dispatcher
	Logger     *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := deps.Config.Server.Addr()
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.Dispatcher.Shutdown()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Environment)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	manager := gateway.NewManager(config.Gateways, lg)

	paymentRepo := paymentpg.NewPaymentRepository(gormDB)
	refundRepo := refundpg.NewRefundRepository(gormDB)
	withdrawalRepo := withdrawalpg.NewWithdrawalRepository(gormDB)
	invoiceRepo := invoicepg.NewInvoiceRepository(gormDB)
	bookingRepo := bookingpg.NewBookingRepository(gormDB)

	paymentService := payment.NewService(paymentRepo, bookingRepo, manager, eventBus, lg,
		payment.WithFeeSchedules(paymentpg.NewGatewayConfigRepository(gormDB)))
	refundService := refund.NewService(refundRepo, paymentService, manager, eventBus, lg)

	dispatcher := withdrawal.NewDispatcher(withdrawal.DispatcherConfig{}, lg)
	withdrawalService := withdrawal.NewService(withdrawalRepo, manager, dispatcher, eventBus, lg)

	invoiceService := invoice.NewService(invoiceRepo, lg)
	invoice.NewEventHandler(invoiceService, lg).RegisterEventHandlers(eventBus)

	baseHandler := transport.NewBaseHandler(lg)
	paymentHandler := payment.NewHandler(baseHandler, paymentService, lg)
	webhookHandler := payment.NewWebhookHandler(baseHandler, paymentService, manager, lg)
	refundHandler := refund.NewHandler(baseHandler, refundService, lg)
	withdrawalHandler := withdrawal.NewHandler(baseHandler, withdrawalService, lg)
	invoiceHandler := invoice.NewHandler(baseHandler, invoiceService, paymentService, lg)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, paymentHandler, webhookHandler, refundHandler, withdrawalHandler, invoiceHandler, lg)

	return &Dependencies{
		Config:     config,
		Logger:     lg,
		DB:         db,
		Router:     router,
		Dispatcher: dispatcher,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
