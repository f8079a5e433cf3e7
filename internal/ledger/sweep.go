package ledger

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/glaciersoft/snowgate/internal/models"
)

// sweepEvery is the cadence of the stale-connection sweep. Half the
// timeout, so a lapsed connection holds its seat for at most one and a
// half timeouts.
const sweepEvery = "@every 30s"

// Sweeper evicts connections whose heartbeat lapsed past SweepTimeout.
type Sweeper struct {
	ledger *Ledger
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewSweeper creates a sweeper over the given ledger.
func NewSweeper(l *Ledger, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		ledger: l,
		cron:   cron.New(),
		logger: logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start schedules the periodic sweep. Call Stop on shutdown.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(sweepEvery, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", sweepEvery).Msg("stale connection sweep started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep evicts every connection whose heartbeat predates the timeout
// cutoff, returning how many were evicted. One bad row does not abort the
// pass; the remaining rows are still swept.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-SweepTimeout)
	stale, err := s.ledger.db.ListStaleConnections(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	start := time.Now()
	evicted := 0
	for _, conn := range stale {
		// Recheck the cutoff on delete: a heartbeat that landed after the
		// listing keeps its seat.
		removed, err := s.ledger.db.DeleteStaleConnection(ctx, conn.ID, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Str("connection_id", conn.ID.String()).Msg("evict stale connection")
			continue
		}
		if !removed {
			continue
		}

		evicted++
		s.ledger.metrics.SweepEvictions.Inc()
		s.ledger.metrics.ReleasesTotal.WithLabelValues("timeout").Inc()
		s.ledger.metrics.ActiveSeats.WithLabelValues(string(conn.Role)).Dec()

		count, err := s.ledger.db.CountActiveConnections(ctx, conn.CustomerID, conn.Role)
		if err != nil {
			s.logger.Error().Err(err).Msg("count connections for timeout event")
		}
		event := models.NewConnectionEvent(conn.CustomerID, &conn.ID, conn.UserHash, conn.Role, models.EventTimeout, 0, count)
		event.Detail = "heartbeat lapsed"
		if err := s.ledger.db.AppendConnectionEvent(ctx, event); err != nil {
			s.logger.Error().Err(err).Msg("append timeout event")
		}

		s.logger.Info().
			Str("connection_id", conn.ID.String()).
			Str("role", string(conn.Role)).
			Time("last_heartbeat", conn.LastHeartbeat).
			Msg("stale connection evicted")
	}

	if evicted > 0 {
		s.ledger.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	return evicted, nil
}
