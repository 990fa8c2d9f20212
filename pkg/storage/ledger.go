package storage

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

func (s *SQL) OverdueInvoices(ctx context.Context, cutoff time.Time, minAmount float64, limit int) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := s.db.SelectContext(ctx, &invoices, s.rebind(
		`SELECT id, invoice_number, status, due_date, total, currency
		 FROM invoices
		 WHERE status = ? AND due_date < ? AND total > ?
		 ORDER BY due_date ASC, id ASC
		 LIMIT ?`),
		model.InvoiceStatusUnpaid, cutoff.UTC(), minAmount, limit,
	)
	if err != nil {
		return nil, storageErr("query overdue invoices", err)
	}
	return invoices, nil
}

func (s *SQL) PettyCashBalance(ctx context.Context, currency string) (float64, error) {
	var balance float64
	err := s.db.GetContext(ctx, &balance, s.rebind(
		`SELECT COALESCE(SUM(CASE WHEN transaction_type = ? THEN amount ELSE -amount END), 0)
		 FROM petty_cash
		 WHERE approval_status = ? AND currency = ?`),
		model.PettyCashCredit, model.ApprovalApproved, currency,
	)
	if err != nil {
		return 0, storageErr("compute petty cash balance", err)
	}
	return balance, nil
}

func (s *SQL) PendingPettyCash(ctx context.Context, cutoff time.Time, limit int) ([]model.PettyCash, error) {
	var records []model.PettyCash
	err := s.db.SelectContext(ctx, &records, s.rebind(
		`SELECT id, transaction_type, amount, currency, approval_status, transaction_date, description
		 FROM petty_cash
		 WHERE approval_status = ? AND transaction_date < ?
		 ORDER BY transaction_date ASC, id ASC
		 LIMIT ?`),
		model.ApprovalPending, cutoff.UTC(), limit,
	)
	if err != nil {
		return nil, storageErr("query pending petty cash", err)
	}
	return records, nil
}
