package invoice

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/reckot/payments/internal"
	"github.com/reckot/payments/internal/core/datamodel/invoice"
)

type RepositoryAPI interface {
	Create(inv *invoice.Invoice) error
	GetByPayment(paymentID int64) (*invoice.Invoice, error)
	GetByNumber(number string) (*invoice.Invoice, error)
	NextSequence(year int) (int64, error)
}

// Service issues one invoice per confirmed payment. Issuance is a side
// effect of confirmation: a failure here is logged and never propagated
// back into the payment flow.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// IssueForPayment renders and stores the invoice for a confirmed payment.
// Idempotent: a payment that already has an invoice gets the existing one
// back.
func (s *Service) IssueForPayment(paymentID int64, reference string, amount int64, currency, provider, customerEmail string) (*invoice.Invoice, error) {
	if existing, err := s.repo.GetByPayment(paymentID); err == nil && existing != nil {
		return existing, nil
	}

	now := time.Now()
	seq, err := s.repo.NextSequence(now.Year())
	if err != nil {
		return nil, internal.NewInternalError("failed to allocate invoice number", err)
	}
	number := fmt.Sprintf("INV-%d-%06d", now.Year(), seq)

	document, err := renderPDF(number, reference, amount, currency, provider, customerEmail, now)
	if err != nil {
		return nil, internal.NewInternalError("failed to render invoice document", err)
	}

	inv := &invoice.Invoice{
		PaymentID:     paymentID,
		Number:        number,
		Amount:        amount,
		Currency:      currency,
		CustomerEmail: customerEmail,
		Document:      document,
		IssuedAt:      now,
	}
	if err := s.repo.Create(inv); err != nil {
		// A concurrent confirmation may have won the unique index race.
		if existing, lookupErr := s.repo.GetByPayment(paymentID); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, internal.NewInternalError("failed to store invoice", err)
	}

	s.logger.Info("invoice issued",
		"number", inv.Number,
		"payment_id", paymentID,
		"amount", amount,
		"currency", currency)
	return inv, nil
}

func (s *Service) GetByNumber(number string) (*invoice.Invoice, error) {
	inv, err := s.repo.GetByNumber(number)
	if err != nil {
		return nil, internal.NewNotFoundError("invoice not found", internal.ErrCodeInvoiceNotFound)
	}
	return inv, nil
}

func (s *Service) GetByPayment(paymentID int64) (*invoice.Invoice, error) {
	inv, err := s.repo.GetByPayment(paymentID)
	if err != nil || inv == nil {
		return nil, internal.NewNotFoundError("invoice not found", internal.ErrCodeInvoiceNotFound)
	}
	return inv, nil
}

func renderPDF(number, reference string, amount int64, currency, provider, customerEmail string, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(100, 10, "Reckot Ticketing")
	pdf.SetFont("Arial", "", 12)
	pdf.Ln(8)
	pdf.Cell(100, 8, "support@reckot.com")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(100, 10, "INVOICE")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(60, 8, "Invoice Number: "+number)
	pdf.Cell(60, 8, "Issued: "+issuedAt.Format("2006-01-02 15:04:05"))
	pdf.Ln(8)
	pdf.Cell(60, 8, "Payment Reference: "+reference)
	pdf.Cell(60, 8, "Paid Via: "+provider)
	pdf.Ln(12)

	if customerEmail != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.Cell(100, 8, "Billed To:")
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(100, 8, customerEmail)
		pdf.Ln(10)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(90, 8, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 8, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(90, 8, "Conference ticket payment "+reference, "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, fmt.Sprintf("%d %s", amount, currency), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(90, 10, "Total:", "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 10, fmt.Sprintf("%d %s", amount, currency), "", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 12)
	pdf.Cell(0, 10, "Thank you for your purchase!")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
