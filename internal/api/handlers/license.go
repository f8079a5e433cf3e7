// Package handlers implements the license authority's HTTP handlers.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/glaciersoft/snowgate/internal/db"
	"github.com/glaciersoft/snowgate/internal/ledger"
	"github.com/glaciersoft/snowgate/internal/license"
	"github.com/glaciersoft/snowgate/internal/metrics"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// expiryWarningWindow is how far ahead of expiry validation responses
// start carrying a warning.
const expiryWarningWindow = 30 * 24 * time.Hour

// LicenseHandler serves the signed phone-home validation endpoint.
type LicenseHandler struct {
	codec   *license.Codec
	signer  *license.Signer
	store   *db.DB
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
	skew    time.Duration
	logger  zerolog.Logger
}

// NewLicenseHandler creates a LicenseHandler.
func NewLicenseHandler(codec *license.Codec, signer *license.Signer, store *db.DB, l *ledger.Ledger, m *metrics.Metrics, skew time.Duration, logger zerolog.Logger) *LicenseHandler {
	if skew == 0 {
		skew = license.DefaultSignatureSkew
	}
	return &LicenseHandler{
		codec:   codec,
		signer:  signer,
		store:   store,
		ledger:  l,
		metrics: m,
		skew:    skew,
		logger:  logger.With().Str("component", "license_handler").Logger(),
	}
}

// Validate handles POST /api/v1/license/validate. Requests that cannot be
// authenticated (bad signature, stale timestamp) are 401; an authenticated
// request always gets a 200 verdict, valid or not, so clients can
// distinguish refusal from outage.
func (h *LicenseHandler) Validate(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.ValidationDuration.Observe(time.Since(start).Seconds())
	}()

	var req wire.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.ValidationsTotal.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, wire.APIError{Error: "invalid request body"})
		return
	}

	now := time.Now()
	if !license.Fresh(req.Timestamp, now, h.skew) {
		h.metrics.ValidationsTotal.WithLabelValues("stale_timestamp").Inc()
		c.JSON(http.StatusUnauthorized, wire.APIError{Error: "request timestamp outside accepted window"})
		return
	}
	if !h.signer.Verify(req.LicenseKey, req.ClientVersion, req.InstanceID, req.Timestamp, req.Signature) {
		h.metrics.ValidationsTotal.WithLabelValues("bad_signature").Inc()
		c.JSON(http.StatusUnauthorized, wire.APIError{Error: "request signature does not verify"})
		return
	}

	fields, err := h.codec.Decode(req.LicenseKey)
	if err != nil {
		h.verdict(c, invalidResponse(now, "license key rejected: "+err.Error()), "invalid_key")
		return
	}

	customer, err := h.store.GetCustomerByOrg(c.Request.Context(), fields.Org)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.verdict(c, invalidResponse(now, "unknown customer"), "unknown_customer")
			return
		}
		h.logger.Error().Err(err).Msg("look up customer")
		c.JSON(http.StatusInternalServerError, wire.APIError{Error: "internal error"})
		return
	}

	// The earlier of the key's stamped expiry and the subscription record
	// decides; a renewed subscription does not revive a key stamped with
	// an older date.
	expiresAt := fields.ExpiresAt
	if customer.ExpiresAt.Before(expiresAt) {
		expiresAt = customer.ExpiresAt
	}
	if now.After(expiresAt) {
		h.verdict(c, invalidResponse(now, "license expired"), "expired")
		return
	}

	seats, err := h.ledger.SeatUsage(c.Request.Context(), customer)
	if err != nil {
		h.logger.Error().Err(err).Msg("collect seat usage")
		c.JSON(http.StatusInternalServerError, wire.APIError{Error: "internal error"})
		return
	}

	var warnings []string
	if remaining := expiresAt.Sub(now); remaining < expiryWarningWindow {
		days := int(remaining.Hours() / 24)
		warnings = append(warnings, fmt.Sprintf("license expires in %d days", days))
	}
	if fields.Tier != license.Tier(customer.Tier) {
		warnings = append(warnings, "license tier differs from subscription record; subscription tier applies")
	}

	resp := &wire.ValidationResponse{
		Valid:       true,
		Tier:        customer.Tier,
		Features:    license.FeatureNames(license.Tier(customer.Tier)),
		ExpiresAt:   &expiresAt,
		Seats:       seats,
		Warnings:    warnings,
		ValidatedAt: now,
	}
	h.verdict(c, resp, "valid")
}

func (h *LicenseHandler) verdict(c *gin.Context, resp *wire.ValidationResponse, label string) {
	h.metrics.ValidationsTotal.WithLabelValues(label).Inc()
	if !resp.Valid {
		h.logger.Warn().Str("reason", resp.Error).Msg("license validation refused")
	}
	c.JSON(http.StatusOK, resp)
}

func invalidResponse(now time.Time, reason string) *wire.ValidationResponse {
	return &wire.ValidationResponse{
		Valid:       false,
		Error:       reason,
		ValidatedAt: now,
	}
}
