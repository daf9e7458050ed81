package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
)

// MySQLLedger persists order outcomes and open reservations.
//
// Schema:
//
//	CREATE TABLE orders (
//	    id            VARCHAR(64) PRIMARY KEY,
//	    status        VARCHAR(32) NOT NULL,
//	    processed_at  DATETIME    NOT NULL,
//	    delivery_info TEXT        NOT NULL
//	);
//	CREATE TABLE reservations (
//	    id            VARCHAR(36)  PRIMARY KEY,
//	    order_id      VARCHAR(64)  NOT NULL UNIQUE,
//	    product_id    VARCHAR(64)  NOT NULL,
//	    account_index INT          NOT NULL,
//	    delivery_info TEXT         NOT NULL,
//	    delivered     TINYINT(1)   NOT NULL DEFAULT 0,
//	    created_at    DATETIME     NOT NULL
//	);
type MySQLLedger struct {
	db *sql.DB
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

func (m *MySQLLedger) OpenReservation(ctx context.Context, orderID string) (*domain.Reservation, error) {
	var (
		r           domain.Reservation
		payloadJSON string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_id, product_id, account_index, delivery_info, created_at
		FROM reservations WHERE order_id = ? AND delivered = 0`, orderID,
	).Scan(&r.ID, &r.OrderID, &r.ProductID, &r.AccountIndex, &payloadJSON, &r.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation: %w", err)
	}

	if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
		return nil, fmt.Errorf("decode reservation payload: %w", err)
	}
	return &r, nil
}

func (m *MySQLLedger) CreateReservation(ctx context.Context, r domain.Reservation) error {
	payloadJSON, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("encode reservation payload: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO reservations (id, order_id, product_id, account_index, delivery_info, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		r.ID, r.OrderID, r.ProductID, r.AccountIndex, string(payloadJSON), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (m *MySQLLedger) MarkDelivered(ctx context.Context, orderID string, processedAt time.Time, payload domain.DeliveryPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode delivery payload: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE reservations SET delivered = 1 WHERE order_id = ? AND delivered = 0`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("close reservation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, status, processed_at, delivery_info)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status),
			processed_at = VALUES(processed_at),
			delivery_info = VALUES(delivery_info)`,
		orderID, string(domain.OrderStatusDeliver), processedAt, string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("record order outcome: %w", err)
	}

	return tx.Commit()
}
