package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/reckot/payments/internal/invoice"
	"github.com/reckot/payments/internal/payment"
	"github.com/reckot/payments/internal/refund"
	"github.com/reckot/payments/internal/transport/middleware"
	"github.com/reckot/payments/internal/transport/swagger"
	"github.com/reckot/payments/internal/withdrawal"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, refundHandler *refund.Handler, withdrawalHandler *withdrawal.Handler, invoiceHandler *invoice.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if webhookHandler != nil {
			// Providers differ on verb: CamPay redirects the payer with GET,
			// PawaPay and Razorpay POST server-to-server.
			r.Get("/payments/callback/{provider}", webhookHandler.HandleCallback)
			r.Post("/payments/callback/{provider}", webhookHandler.HandleCallback)
		}

		if paymentHandler != nil {
			r.Route("/payments", func(pr chi.Router) {
				pr.Post("/", paymentHandler.InitiatePayment)      // POST /payments
				pr.Get("/stats", paymentHandler.GetStats)         // GET /payments/stats
				pr.Get("/{reference}", paymentHandler.GetPayment) // GET /payments/:reference
				pr.Post("/{reference}/retry", paymentHandler.RetryPayment)
				if refundHandler != nil {
					pr.Get("/{reference}/refunds", refundHandler.ListForPayment)
				}
				if invoiceHandler != nil {
					pr.Get("/{reference}/invoice", invoiceHandler.DownloadInvoice)
				}
			})
		}

		if refundHandler != nil {
			r.Route("/refunds", func(rr chi.Router) {
				rr.Post("/", refundHandler.RequestRefund)
				rr.Get("/{id}", refundHandler.GetRefund)
				rr.Get("/{id}/audit", refundHandler.GetAuditTrail)
				rr.Patch("/{id}/approve", refundHandler.ApproveRefund)
				rr.Patch("/{id}/reject", refundHandler.RejectRefund)
				rr.Patch("/{id}/process", refundHandler.ProcessRefund)
			})
		}

		if withdrawalHandler != nil {
			r.Route("/withdrawals", func(wr chi.Router) {
				wr.Post("/", withdrawalHandler.RequestWithdrawal)
				wr.Get("/", withdrawalHandler.ListWithdrawals)
				wr.Get("/{reference}", withdrawalHandler.GetWithdrawal)
				wr.Patch("/{reference}/approve", withdrawalHandler.ApproveWithdrawal)
				wr.Get("/{reference}/audit", withdrawalHandler.GetAuditTrail)
			})
			r.Get("/organizations/{organizationID}/balance", withdrawalHandler.GetBalance)
		}
	})
}
