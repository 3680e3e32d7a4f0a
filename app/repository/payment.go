package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Topupio/game-topup-sub000/app/entity"
)

var ErrPaymentNotFound = errors.New("payment not found")

const paymentColumns = `
	id, order_id, user_id, gateway, status,
	amount_cents, currency,
	transaction_id, gateway_order_id, raw_response,
	refund_json, created_at, updated_at`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts one audit record. The transaction id carries a unique index
// (NULL when the gateway reported no capture id), so a second writer for the
// same gateway event gets ErrDuplicateKey instead of a duplicate row.
func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	var refundJSON interface{}
	if payment.Refund != nil {
		serialized, err := serializeJSON(payment.Refund)
		if err != nil {
			return err
		}
		refundJSON = serialized
	}

	var transactionID interface{}
	if payment.TransactionID != "" {
		transactionID = payment.TransactionID
	}

	query := `
		INSERT INTO payments (
			order_id, user_id, gateway, status,
			amount_cents, currency,
			transaction_id, gateway_order_id, raw_response,
			refund_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.OrderID,
		payment.UserID,
		payment.Gateway,
		string(payment.Status),
		payment.AmountCents,
		payment.Currency,
		transactionID,
		payment.GatewayOrderID,
		payment.RawResponse,
		refundJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateKey
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

// SetRefund attaches the refund outcome to an existing payment and flips its
// status. Refunds mutate the success record in place; no new row is created.
func (r *PaymentRepository) SetRefund(ctx context.Context, payment *entity.Payment) error {
	refundJSON, err := serializeJSON(payment.Refund)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments SET
			status = ?,
			refund_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(payment.Status),
		refundJSON,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE transaction_id = ? LIMIT 1`
	return r.findOne(ctx, query, transactionID)
}

func (r *PaymentRepository) FindSuccessByOrderID(ctx context.Context, orderID uint64) (*entity.Payment, error) {
	query := `SELECT` + paymentColumns + `
		FROM payments
		WHERE order_id = ? AND status IN (?, ?)
		ORDER BY id DESC
		LIMIT 1`
	return r.findOne(ctx, query, orderID, string(entity.PaymentRecordSuccess), string(entity.PaymentRecordRefunded))
}

func (r *PaymentRepository) ListByOrderID(ctx context.Context, orderID uint64) ([]*entity.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE order_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Payment, error) {
	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, args...), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var status string
	var transactionID sql.NullString
	var refundJSON sql.NullString
	var createdAt, updatedAt time.Time

	err := scan.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.UserID,
		&payment.Gateway,
		&status,
		&payment.AmountCents,
		&payment.Currency,
		&transactionID,
		&payment.GatewayOrderID,
		&payment.RawResponse,
		&refundJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return err
	}

	payment.Status = entity.PaymentRecordStatus(status)
	if transactionID.Valid {
		payment.TransactionID = transactionID.String
	}
	payment.CreatedAt = createdAt
	payment.UpdatedAt = updatedAt

	if refundJSON.Valid && refundJSON.String != "" {
		refund := &entity.Refund{}
		if err := parseJSON(refundJSON.String, refund); err != nil {
			return err
		}
		payment.Refund = refund
	}
	return nil
}
