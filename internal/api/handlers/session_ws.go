package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/glaciersoft/snowgate/internal/db"
	"github.com/glaciersoft/snowgate/internal/ledger"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Admission is authenticated by the session handshake, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session handles GET /api/v1/sessions/ws: a socket-scoped seat. The
// first client message is an OpenSessionRequest; once admitted, the seat
// lives exactly as long as the socket. Pings and heartbeat frames both
// refresh liveness, and the seat is released when the socket closes.
func (h *SessionHandler) Session(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var req wire.OpenSessionRequest
	conn.SetReadDeadline(time.Now().Add(ledger.HeartbeatInterval))
	if err := conn.ReadJSON(&req); err != nil {
		h.writeWSError(conn, "expected session open request")
		return
	}
	if !req.Role.IsValid() {
		h.writeWSError(conn, "unknown role")
		return
	}
	if req.Peer == "" {
		req.Peer = c.ClientIP()
	}

	ctx := c.Request.Context()
	customer, err := h.store.GetCustomerByOrg(ctx, req.Customer)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeWSError(conn, "unknown customer")
		} else {
			h.logger.Error().Err(err).Msg("look up customer")
			h.writeWSError(conn, "internal error")
		}
		return
	}
	if customer.Expired(time.Now()) {
		h.writeWSError(conn, "subscription expired")
		return
	}

	decision, err := h.ledger.Admit(ctx, customer, &req)
	if err != nil {
		h.logger.Error().Err(err).Msg("admit connection")
		h.writeWSError(conn, "internal error")
		return
	}
	if !decision.Admitted {
		_ = conn.WriteJSON(wire.SessionRejection{
			Reason:      decision.Reason,
			SeatLimit:   decision.SeatLimit,
			ActiveCount: decision.ActiveCount,
		})
		return
	}

	connectionID := decision.ConnectionID
	if err := conn.WriteJSON(wire.OpenSessionResponse{
		ConnectionID:      connectionID,
		HeartbeatInterval: int(ledger.HeartbeatInterval.Seconds()),
	}); err != nil {
		h.releaseSocketSeat(connectionID)
		return
	}

	// The socket owns the seat from here: any inbound traffic refreshes
	// the heartbeat, and the deferred release frees the seat on close.
	defer h.releaseSocketSeat(connectionID)

	conn.SetReadDeadline(time.Now().Add(ledger.SweepTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(ledger.SweepTimeout))
		_, err := h.ledger.Heartbeat(ctx, connectionID)
		return err
	})

	for {
		var hb wire.SessionHeartbeat
		if err := conn.ReadJSON(&hb); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(ledger.SweepTimeout))

		refreshed, err := h.ledger.Heartbeat(ctx, connectionID)
		if err != nil {
			// Swept while the socket was alive: tell the client to re-admit.
			h.writeWSError(conn, "connection evicted")
			return
		}
		if err := conn.WriteJSON(wire.SessionHeartbeat{
			ConnectionID: refreshed.ID,
			SeenAt:       refreshed.LastHeartbeat,
		}); err != nil {
			return
		}
	}
}

func (h *SessionHandler) releaseSocketSeat(connectionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.ledger.Release(ctx, connectionID); err != nil {
		h.logger.Error().Err(err).Msg("release socket seat")
	}
}

func (h *SessionHandler) writeWSError(conn *websocket.Conn, msg string) {
	_ = conn.WriteJSON(wire.APIError{Error: msg})
}
