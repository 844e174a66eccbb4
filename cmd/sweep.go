package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	bookingpg "github.com/reckot/payments/internal/booking/postgres"
	"github.com/reckot/payments/internal/core/events"
	"github.com/reckot/payments/internal/gateway"
	"github.com/reckot/payments/internal/payment"
	paymentpg "github.com/reckot/payments/internal/payment/postgres"
	"github.com/reckot/payments/pkg/logger"
)

var (
	sweepCmd = &cobra.Command{
		RunE:  runSweeper,
		Use:   "sweep",
		Short: "expire lapsed pending payments on an interval",
	}
	sweepOnce bool
)

func init() {
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single sweep and exit")
}

// runSweeper marks pending payments past their TTL as expired so abandoned
// checkouts release their booking slot. Runs until signalled unless --once.
func runSweeper(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}

	logger.Init(cfg.Observability.Environment)
	lg := logger.LoggerWrapper()

	db, err := sqlx.Connect("pgx", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to initialize orm: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	manager := gateway.NewManager(cfg.Gateways, lg)
	service := payment.NewService(
		paymentpg.NewPaymentRepository(gormDB),
		bookingpg.NewBookingRepository(gormDB),
		manager,
		eventBus,
		lg,
	)

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		count, err := service.SweepExpired(ctx)
		if err != nil {
			lg.Error("sweep failed", "error", err)
			return
		}
		if count > 0 {
			lg.Info("expired lapsed payments", "count", count)
		}
	}

	sweep()
	if sweepOnce {
		return nil
	}

	interval := cfg.Sweeper.SweepInterval()
	lg.Info("sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sweep()
		case sig := <-sigChan:
			lg.Info("sweeper stopping", "signal", sig)
			return nil
		}
	}
}
