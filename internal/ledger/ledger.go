// Package ledger is the authoritative seat accounting layer: it decides
// admissions against the customer's seat budget, tracks heartbeats, and
// evicts connections whose clients went silent.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glaciersoft/snowgate/internal/db"
	"github.com/glaciersoft/snowgate/internal/metrics"
	"github.com/glaciersoft/snowgate/internal/models"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

const (
	// HeartbeatInterval is how often admitted clients are told to check in.
	HeartbeatInterval = 30 * time.Second
	// SweepTimeout is the silence after which a connection is evicted.
	// More than twice the heartbeat interval, so one dropped heartbeat
	// never costs a seat.
	SweepTimeout = 75 * time.Second
)

// ErrConnectionNotFound is returned when a heartbeat or release names a
// connection the ledger no longer tracks.
var ErrConnectionNotFound = errors.New("connection not found")

// Ledger mediates all seat lifecycle transitions.
type Ledger struct {
	db      *db.DB
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a seat ledger backed by the given store.
func New(database *db.DB, m *metrics.Metrics, logger zerolog.Logger) *Ledger {
	return &Ledger{
		db:      database,
		metrics: m,
		logger:  logger.With().Str("component", "ledger").Logger(),
	}
}

// Admit attempts to claim a seat for the identity in req. The decision is
// made atomically against the customer's current occupancy; concurrent
// attempts for the last free seat cannot both be admitted.
func (l *Ledger) Admit(ctx context.Context, customer *models.Customer, req *wire.OpenSessionRequest) (*models.AdmissionDecision, error) {
	decision, err := l.db.AdmitConnection(ctx, customer, req)
	if err != nil {
		if errors.Is(err, db.ErrSerializationRetries) {
			l.metrics.SerializationErr.Inc()
		}
		return nil, fmt.Errorf("admit connection: %w", err)
	}

	log := l.logger.With().
		Str("customer", customer.Org).
		Str("role", string(req.Role)).
		Int("seat_limit", decision.SeatLimit).
		Int("active_count", decision.ActiveCount).
		Logger()

	switch {
	case decision.Admitted && decision.Reconnect:
		l.metrics.AdmissionsTotal.WithLabelValues(string(req.Role), "reconnect").Inc()
		log.Info().Str("connection_id", decision.ConnectionID.String()).Msg("reconnect admitted")
	case decision.Admitted:
		l.metrics.AdmissionsTotal.WithLabelValues(string(req.Role), "fresh").Inc()
		l.metrics.ActiveSeats.WithLabelValues(string(req.Role)).Inc()
		log.Info().Str("connection_id", decision.ConnectionID.String()).Msg("connection admitted")
	default:
		l.metrics.RejectionsTotal.Inc()
		log.Warn().Msg("connection rejected, seat limit reached")
	}

	return decision, nil
}

// Heartbeat refreshes a connection's liveness. ErrConnectionNotFound means
// the connection was released or swept; the client must re-admit.
func (l *Ledger) Heartbeat(ctx context.Context, connectionID uuid.UUID) (*models.ActiveConnection, error) {
	conn, err := l.db.TouchConnection(ctx, connectionID, time.Now())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("touch connection: %w", err)
	}

	l.metrics.HeartbeatsTotal.Inc()

	count, err := l.db.CountActiveConnections(ctx, conn.CustomerID, conn.Role)
	if err != nil {
		// Heartbeat already succeeded; the audit record is best effort.
		l.logger.Error().Err(err).Msg("count connections for heartbeat event")
		return conn, nil
	}
	event := models.NewConnectionEvent(conn.CustomerID, &conn.ID, conn.UserHash, conn.Role, models.EventHeartbeat, 0, count)
	if err := l.db.AppendConnectionEvent(ctx, event); err != nil {
		l.logger.Error().Err(err).Msg("append heartbeat event")
	}
	return conn, nil
}

// Release frees a connection's seat. Releasing an unknown connection is a
// no-op, so clients can close unconditionally on shutdown.
func (l *Ledger) Release(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := l.db.ReleaseConnection(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("release connection: %w", err)
	}
	if conn == nil {
		return nil
	}

	l.metrics.ReleasesTotal.WithLabelValues("disconnect").Inc()
	l.metrics.ActiveSeats.WithLabelValues(string(conn.Role)).Dec()

	count, err := l.db.CountActiveConnections(ctx, conn.CustomerID, conn.Role)
	if err != nil {
		l.logger.Error().Err(err).Msg("count connections for disconnect event")
		count = 0
	}
	event := models.NewConnectionEvent(conn.CustomerID, &conn.ID, conn.UserHash, conn.Role, models.EventDisconnect, 0, count)
	if err := l.db.AppendConnectionEvent(ctx, event); err != nil {
		l.logger.Error().Err(err).Msg("append disconnect event")
	}

	l.logger.Info().
		Str("connection_id", connectionID.String()).
		Str("role", string(conn.Role)).
		Msg("connection released")
	return nil
}

// SeatUsage returns the customer's current occupancy per role, in the
// shape the validation response reports it.
func (l *Ledger) SeatUsage(ctx context.Context, customer *models.Customer) (map[string]wire.SeatUsage, error) {
	roles := wire.ValidRoles()
	usage := make(map[string]wire.SeatUsage, len(roles))
	for _, role := range roles {
		count, err := l.db.CountActiveConnections(ctx, customer.ID, role)
		if err != nil {
			return nil, fmt.Errorf("count %s seats: %w", role, err)
		}
		usage[string(role)] = wire.SeatUsage{
			Limit:  customer.SeatLimit(role),
			Active: count,
		}
	}
	return usage, nil
}
