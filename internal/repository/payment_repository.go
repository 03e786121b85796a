package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// PaymentRepo persists checkout attempts.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, order_id, amount, status, payment_key, approved_at, created_at`

func scanPayment(s rowScanner) (*model.Payment, error) {
	var p model.Payment
	var key sql.NullString
	var approved sql.NullTime
	if err := s.Scan(&p.ID, &p.BookingID, &p.OrderID, &p.Amount, &p.Status, &key, &approved, &p.CreatedAt); err != nil {
		return nil, err
	}
	if key.Valid {
		k := key.String
		p.PaymentKey = &k
	}
	if approved.Valid {
		t := approved.Time.UTC()
		p.ApprovedAt = &t
	}
	return &p, nil
}

// Create inserts a READY payment for a booking.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (booking_id, order_id, amount, status) VALUES (?, ?, ?, ?)`,
		p.BookingID, p.OrderID, p.Amount, model.PaymentReady)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Status = model.PaymentReady
	return nil
}

// GetByOrderIDTx loads and locks a payment by the order id given to the widget.
func (r *PaymentRepo) GetByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID string) (*model.Payment, error) {
	p, err := scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = ? FOR UPDATE`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// MarkDoneTx records a confirmed payment.
func (r *PaymentRepo) MarkDoneTx(ctx context.Context, tx *sql.Tx, id uint64, paymentKey string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, payment_key = ?, approved_at = ? WHERE id = ?`,
		model.PaymentDone, paymentKey, at.UTC(), id)
	return err
}

// MarkAborted flags a payment whose confirmation failed.
func (r *PaymentRepo) MarkAborted(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		model.PaymentAborted, id, model.PaymentReady)
	return err
}
