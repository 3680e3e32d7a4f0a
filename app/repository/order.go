package repository

import (
	"context"
	"database/sql"

	"github.com/Topupio/game-topup-sub000/app/entity"
)

const orderColumns = `
	id, code, user_id, item_id, variant_id,
	order_status, payment_status,
	amount_cents, unit_price_cents, quantity, currency,
	snapshot_json, payment_info_json, user_inputs_json, tracking_json,
	admin_note, version, created_at, updated_at`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. A code collision surfaces as ErrDuplicateKey so
// the caller can regenerate and retry.
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	snapshotJSON, err := serializeJSON(order.Snapshot)
	if err != nil {
		return err
	}
	paymentInfoJSON, err := serializeJSON(order.PaymentInfo)
	if err != nil {
		return err
	}
	userInputsJSON, err := serializeJSON(order.UserInputs)
	if err != nil {
		return err
	}
	trackingJSON, err := serializeJSON(order.Tracking)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			code, user_id, item_id, variant_id,
			order_status, payment_status,
			amount_cents, unit_price_cents, quantity, currency,
			snapshot_json, payment_info_json, user_inputs_json, tracking_json,
			admin_note, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.Code,
		order.UserID,
		order.ItemID,
		order.VariantID,
		string(order.OrderStatus),
		string(order.PaymentStatus),
		order.AmountCents,
		order.UnitPriceCents,
		order.Quantity,
		order.Currency,
		snapshotJSON,
		paymentInfoJSON,
		userInputsJSON,
		trackingJSON,
		nullableStringValue(order.AdminNote),
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
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
	order.ID = uint64(id)
	return nil
}

// Update writes the order's mutable fields guarded by the version read at
// load time. A missed conditional update is reported as ErrVersionConflict;
// the caller reloads and re-checks its idempotency guards.
func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	snapshotJSON, err := serializeJSON(order.Snapshot)
	if err != nil {
		return err
	}
	paymentInfoJSON, err := serializeJSON(order.PaymentInfo)
	if err != nil {
		return err
	}
	trackingJSON, err := serializeJSON(order.Tracking)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders SET
			order_status = ?,
			payment_status = ?,
			amount_cents = ?,
			unit_price_cents = ?,
			currency = ?,
			snapshot_json = ?,
			payment_info_json = ?,
			tracking_json = ?,
			admin_note = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(order.OrderStatus),
		string(order.PaymentStatus),
		order.AmountCents,
		order.UnitPriceCents,
		order.Currency,
		snapshotJSON,
		paymentInfoJSON,
		trackingJSON,
		nullableStringValue(order.AdminNote),
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	order.Version++
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = ?`
	return r.findOne(ctx, query, id)
}

func (r *OrderRepository) FindByCode(ctx context.Context, code string) (*entity.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE code = ? LIMIT 1`
	return r.findOne(ctx, query, code)
}

// FindByTransactionID matches the gateway transaction id stored in the
// payment info document.
func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM orders
		WHERE JSON_UNQUOTE(JSON_EXTRACT(payment_info_json, '$.transactionId')) = ?
		LIMIT 1`
	return r.findOne(ctx, query, transactionID)
}

// FindPendingByCode narrows the webhook reference-code fallback to orders
// still awaiting payment.
func (r *OrderRepository) FindPendingByCode(ctx context.Context, code string) (*entity.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM orders
		WHERE code = ? AND payment_status = ?
		LIMIT 1`
	return r.findOne(ctx, query, code, string(entity.PaymentPending))
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*entity.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM orders
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *OrderRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Order, error) {
	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, args...), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var orderStatus, paymentStatus string
	var snapshotJSON, paymentInfoJSON, userInputsJSON, trackingJSON string
	var adminNote sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.Code,
		&order.UserID,
		&order.ItemID,
		&order.VariantID,
		&orderStatus,
		&paymentStatus,
		&order.AmountCents,
		&order.UnitPriceCents,
		&order.Quantity,
		&order.Currency,
		&snapshotJSON,
		&paymentInfoJSON,
		&userInputsJSON,
		&trackingJSON,
		&adminNote,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.OrderStatus = entity.OrderStatus(orderStatus)
	order.PaymentStatus = entity.PaymentStatus(paymentStatus)
	order.AdminNote = stringPtrFromNull(adminNote)

	if err := parseJSON(snapshotJSON, &order.Snapshot); err != nil {
		return err
	}
	if err := parseJSON(paymentInfoJSON, &order.PaymentInfo); err != nil {
		return err
	}
	if err := parseJSON(userInputsJSON, &order.UserInputs); err != nil {
		return err
	}
	return parseJSON(trackingJSON, &order.Tracking)
}
