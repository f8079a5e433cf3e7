package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glaciersoft/snowgate/internal/db"
	"github.com/glaciersoft/snowgate/internal/ledger"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// SessionHandler serves the seat admission, heartbeat, and release
// endpoints.
type SessionHandler struct {
	store  *db.DB
	ledger *ledger.Ledger
	logger zerolog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(store *db.DB, l *ledger.Ledger, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		store:  store,
		ledger: l,
		logger: logger.With().Str("component", "session_handler").Logger(),
	}
}

// Open handles POST /api/v1/sessions: claim a seat for an identity.
// 201 with the connection id on admission, 409 with the observed budget
// and occupancy when the role's seats are exhausted.
func (h *SessionHandler) Open(c *gin.Context) {
	var req wire.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.APIError{Error: "invalid request body"})
		return
	}
	if !req.Role.IsValid() {
		c.JSON(http.StatusBadRequest, wire.APIError{Error: "unknown role", Details: string(req.Role)})
		return
	}
	if req.Peer == "" {
		req.Peer = c.ClientIP()
	}

	customer, err := h.store.GetCustomerByOrg(c.Request.Context(), req.Customer)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, wire.APIError{Error: "unknown customer"})
			return
		}
		h.logger.Error().Err(err).Msg("look up customer")
		c.JSON(http.StatusInternalServerError, wire.APIError{Error: "internal error"})
		return
	}
	if customer.Expired(time.Now()) {
		c.JSON(http.StatusForbidden, wire.APIError{Error: "subscription expired"})
		return
	}

	decision, err := h.ledger.Admit(c.Request.Context(), customer, &req)
	if err != nil {
		h.logger.Error().Err(err).Msg("admit connection")
		c.JSON(http.StatusInternalServerError, wire.APIError{Error: "internal error"})
		return
	}

	if !decision.Admitted {
		c.JSON(http.StatusConflict, wire.SessionRejection{
			Reason:      decision.Reason,
			SeatLimit:   decision.SeatLimit,
			ActiveCount: decision.ActiveCount,
		})
		return
	}

	c.JSON(http.StatusCreated, wire.OpenSessionResponse{
		ConnectionID:      decision.ConnectionID,
		HeartbeatInterval: int(ledger.HeartbeatInterval.Seconds()),
	})
}

// Heartbeat handles POST /api/v1/sessions/:id/heartbeat. 404 means the
// connection was released or swept; the client must re-admit.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}

	conn, err := h.ledger.Heartbeat(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrConnectionNotFound) {
			c.JSON(http.StatusNotFound, wire.APIError{Error: "connection not found"})
			return
		}
		h.logger.Error().Err(err).Msg("heartbeat")
		c.JSON(http.StatusInternalServerError, wire.APIError{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, wire.SessionHeartbeat{
		ConnectionID: conn.ID,
		SeenAt:       conn.LastHeartbeat,
	})
}

// Close handles DELETE /api/v1/sessions/:id. Always 204: release is
// idempotent so clients can close unconditionally on shutdown.
func (h *SessionHandler) Close(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}

	if err := h.ledger.Release(c.Request.Context(), id); err != nil {
		h.logger.Error().Err(err).Msg("release connection")
		c.JSON(http.StatusInternalServerError, wire.APIError{Error: "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) connectionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, wire.APIError{Error: "invalid connection id"})
		return uuid.Nil, false
	}
	return id, true
}
