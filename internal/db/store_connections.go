package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/glaciersoft/snowgate/internal/models"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// RejectionSeatsExhausted is the reason recorded when no seat is free.
const RejectionSeatsExhausted = "seat limit reached"

// AdmitConnection runs the admission algorithm as one serializable
// transaction: count the role's active rows, admit if under budget or if
// the identity already holds a row (reconnect), otherwise reject. The
// matching connect/rejected event is written in the same transaction, so
// the audit trail cannot disagree with the ledger.
func (db *DB) AdmitConnection(ctx context.Context, customer *models.Customer, req *wire.OpenSessionRequest) (*models.AdmissionDecision, error) {
	limit := customer.SeatLimit(req.Role)
	decision := &models.AdmissionDecision{SeatLimit: limit}

	err := db.ExecSerializableTx(ctx, func(tx pgx.Tx) error {
		// Reset per attempt: a serialization retry re-runs the closure.
		*decision = models.AdmissionDecision{SeatLimit: limit}

		var count int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM active_connections
			WHERE customer_id = $1 AND role = $2
		`, customer.ID, string(req.Role)).Scan(&count)
		if err != nil {
			return fmt.Errorf("count active connections: %w", err)
		}

		var existingID uuid.UUID
		err = tx.QueryRow(ctx, `
			SELECT id FROM active_connections
			WHERE customer_id = $1 AND user_hash = $2 AND role = $3
		`, customer.ID, req.UserHash, string(req.Role)).Scan(&existingID)
		reconnect := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("look up existing connection: %w", err)
		}

		now := time.Now()
		switch {
		case reconnect:
			// The identity already holds its seat: replace the row's
			// metadata and reset the heartbeat under a fresh connection id.
			newID := uuid.New()
			_, err = tx.Exec(ctx, `
				UPDATE active_connections
				SET id = $2, peer = $3, client = $4, last_heartbeat = $5
				WHERE id = $1
			`, existingID, newID, req.Peer, req.Client, now)
			if err != nil {
				return fmt.Errorf("replace connection row: %w", err)
			}
			decision.Admitted = true
			decision.Reconnect = true
			decision.ConnectionID = newID
			decision.ActiveCount = count

		case wire.SeatsUnlimited(limit) || count < limit:
			conn := models.NewActiveConnection(customer.ID, req.UserHash, req.Role, req.Peer, req.Client)
			_, err = tx.Exec(ctx, `
				INSERT INTO active_connections (id, customer_id, user_hash, role, peer, client, first_seen_at, last_heartbeat)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, conn.ID, conn.CustomerID, conn.UserHash, string(conn.Role), conn.Peer, conn.Client, conn.FirstSeenAt, conn.LastHeartbeat)
			if err != nil {
				return fmt.Errorf("insert connection row: %w", err)
			}
			decision.Admitted = true
			decision.ConnectionID = conn.ID
			decision.ActiveCount = count + 1

		default:
			decision.Reason = RejectionSeatsExhausted
			decision.ActiveCount = count
		}

		return db.appendEventTx(ctx, tx, admissionEvent(customer.ID, req, decision))
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// admissionEvent builds the audit record matching an admission decision.
func admissionEvent(customerID uuid.UUID, req *wire.OpenSessionRequest, decision *models.AdmissionDecision) *models.ConnectionEvent {
	typ := models.EventConnect
	var connID *uuid.UUID
	if decision.Admitted {
		id := decision.ConnectionID
		connID = &id
	} else {
		typ = models.EventRejected
	}
	event := models.NewConnectionEvent(customerID, connID, req.UserHash, req.Role, typ, decision.SeatLimit, decision.ActiveCount)
	event.Detail = decision.Reason
	return event
}

// TouchConnection refreshes a connection's heartbeat, returning the row.
// ErrNotFound means the connection was released or swept.
func (db *DB) TouchConnection(ctx context.Context, id uuid.UUID, at time.Time) (*models.ActiveConnection, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE active_connections
		SET last_heartbeat = $2
		WHERE id = $1
		RETURNING id, customer_id, user_hash, role, peer, client, first_seen_at, last_heartbeat
	`, id, at)
	return scanConnection(row)
}

// ReleaseConnection removes a connection row. Releasing an unknown id is a
// no-op: release is idempotent. The removed row is returned when one existed.
func (db *DB) ReleaseConnection(ctx context.Context, id uuid.UUID) (*models.ActiveConnection, error) {
	row := db.Pool.QueryRow(ctx, `
		DELETE FROM active_connections
		WHERE id = $1
		RETURNING id, customer_id, user_hash, role, peer, client, first_seen_at, last_heartbeat
	`, id)
	conn, err := scanConnection(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return conn, err
}

// ListStaleConnections returns connections whose heartbeat lapsed before
// the cutoff.
func (db *DB) ListStaleConnections(ctx context.Context, cutoff time.Time) ([]*models.ActiveConnection, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, customer_id, user_hash, role, peer, client, first_seen_at, last_heartbeat
		FROM active_connections
		WHERE last_heartbeat < $1
		ORDER BY last_heartbeat
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.ActiveConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale connections: %w", err)
	}
	return conns, nil
}

// DeleteStaleConnection removes a swept row only if its heartbeat is still
// stale, so a row revived by a late heartbeat survives the sweep.
func (db *DB) DeleteStaleConnection(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM active_connections
		WHERE id = $1 AND last_heartbeat < $2
	`, id, cutoff)
	if err != nil {
		return false, fmt.Errorf("delete stale connection: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountActiveConnections returns the current occupancy for (customer, role).
func (db *DB) CountActiveConnections(ctx context.Context, customerID uuid.UUID, role wire.Role) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM active_connections
		WHERE customer_id = $1 AND role = $2
	`, customerID, string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active connections: %w", err)
	}
	return count, nil
}

// GetConnectionByID returns a connection row by id.
func (db *DB) GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.ActiveConnection, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, customer_id, user_hash, role, peer, client, first_seen_at, last_heartbeat
		FROM active_connections
		WHERE id = $1
	`, id)
	return scanConnection(row)
}

func scanConnection(row pgx.Row) (*models.ActiveConnection, error) {
	var (
		conn    models.ActiveConnection
		roleStr string
	)
	err := row.Scan(&conn.ID, &conn.CustomerID, &conn.UserHash, &roleStr,
		&conn.Peer, &conn.Client, &conn.FirstSeenAt, &conn.LastHeartbeat)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	conn.Role = wire.Role(roleStr)
	return &conn, nil
}
