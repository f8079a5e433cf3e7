package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/glaciersoft/snowgate/internal/models"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// AppendConnectionEvent writes one audit record. The log is append-only;
// nothing in the server updates or deletes event rows.
func (db *DB) AppendConnectionEvent(ctx context.Context, event *models.ConnectionEvent) error {
	_, err := db.Pool.Exec(ctx, insertEventSQL, eventArgs(event)...)
	if err != nil {
		return fmt.Errorf("append connection event: %w", err)
	}
	return nil
}

// appendEventTx writes an audit record inside an existing transaction, so
// admission decisions and their events commit or roll back together.
func (db *DB) appendEventTx(ctx context.Context, tx pgx.Tx, event *models.ConnectionEvent) error {
	_, err := tx.Exec(ctx, insertEventSQL, eventArgs(event)...)
	if err != nil {
		return fmt.Errorf("append connection event: %w", err)
	}
	return nil
}

const insertEventSQL = `
	INSERT INTO connection_events (id, customer_id, connection_id, user_hash, role, event_type, seat_limit, active_count, detail, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func eventArgs(event *models.ConnectionEvent) []any {
	return []any{
		event.ID, event.CustomerID, event.ConnectionID, event.UserHash,
		string(event.Role), string(event.Type), event.SeatLimit,
		event.ActiveCount, event.Detail, event.CreatedAt,
	}
}

// EventFilter narrows a connection event listing. Zero-valued fields match
// everything.
type EventFilter struct {
	CustomerID uuid.UUID
	Type       models.ConnectionEventType
	Since      time.Time
	Limit      int
}

// ListConnectionEvents returns audit records matching the filter, newest
// first.
func (db *DB) ListConnectionEvents(ctx context.Context, filter EventFilter) ([]*models.ConnectionEvent, error) {
	query := `
		SELECT id, customer_id, connection_id, user_hash, role, event_type, seat_limit, active_count, detail, created_at
		FROM connection_events
		WHERE 1=1
	`
	args := []any{}
	argN := 1

	if filter.CustomerID != uuid.Nil {
		query += fmt.Sprintf(" AND customer_id = $%d", argN)
		args = append(args, filter.CustomerID)
		argN++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argN)
		args = append(args, string(filter.Type))
		argN++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argN)
		args = append(args, filter.Since)
		argN++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list connection events: %w", err)
	}
	defer rows.Close()

	var events []*models.ConnectionEvent
	for rows.Next() {
		var (
			event   models.ConnectionEvent
			roleStr string
			typeStr string
		)
		err := rows.Scan(&event.ID, &event.CustomerID, &event.ConnectionID,
			&event.UserHash, &roleStr, &typeStr, &event.SeatLimit,
			&event.ActiveCount, &event.Detail, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan connection event: %w", err)
		}
		event.Role = wire.Role(roleStr)
		event.Type = models.ConnectionEventType(typeStr)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection events: %w", err)
	}
	return events, nil
}

// CountRejections returns how many admissions were refused for a customer
// since the given time. Used by the seat-usage snapshot.
func (db *DB) CountRejections(ctx context.Context, customerID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM connection_events
		WHERE customer_id = $1 AND event_type = $2 AND created_at >= $3
	`, customerID, string(models.EventRejected), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rejections: %w", err)
	}
	return count, nil
}
