package license

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

const (
	// RecheckInterval is how long a validated cache satisfies Validate
	// without a network call.
	RecheckInterval = 24 * time.Hour

	// GracePeriod is how long a previously validated cache keeps the
	// instance licensed while the authority is unreachable. It is longer
	// than the recheck interval but still bounded.
	GracePeriod = 7 * 24 * time.Hour
)

// Outcome is the structured result of a validation. Expected failures are
// reported here rather than raised; Err carries the cause, and on the grace
// path it is attached alongside Success=true for observability.
type Outcome struct {
	Success  bool
	Cached   bool
	Response *wire.ValidationResponse
	Err      error
}

// Validator orchestrates phone-home validation: fresh-cache short-circuit,
// bounded retries with backoff, and grace-period fallback. It is owned by
// the application's composition root and passed to features that need it;
// there is no package-level instance.
type Validator struct {
	licenseKey    string
	clientVersion string
	authority     *AuthorityClient
	signer        *Signer
	identity      *Identity
	cache         CacheStore
	retry         RetryPolicy
	clock         Clock
	recheck       time.Duration
	grace         time.Duration
	logger        zerolog.Logger

	mu         sync.Mutex
	inFlight   bool
	cached     *CachedValidation
	loaded     bool
	instanceID string
}

// ValidatorConfig holds the validator's dependencies.
type ValidatorConfig struct {
	LicenseKey    string
	ClientVersion string
	Authority     *AuthorityClient
	Signer        *Signer
	Identity      *Identity
	Cache         CacheStore
	Retry         RetryPolicy
	Clock         Clock
	// RecheckInterval and GracePeriod default to the package constants.
	RecheckInterval time.Duration
	GracePeriod     time.Duration
	Logger          zerolog.Logger
}

// NewValidator creates a validator. Zero-valued optional fields get defaults.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.RecheckInterval == 0 {
		cfg.RecheckInterval = RecheckInterval
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = GracePeriod
	}
	return &Validator{
		licenseKey:    cfg.LicenseKey,
		clientVersion: cfg.ClientVersion,
		authority:     cfg.Authority,
		signer:        cfg.Signer,
		identity:      cfg.Identity,
		cache:         cfg.Cache,
		retry:         cfg.Retry,
		clock:         cfg.Clock,
		recheck:       cfg.RecheckInterval,
		grace:         cfg.GracePeriod,
		logger:        cfg.Logger.With().Str("component", "license_validator").Logger(),
	}
}

// Validate returns the current licensing verdict. A validated cache younger
// than the recheck interval is returned without a network call. Otherwise
// one phone-home runs with bounded retries; concurrent callers get the
// current cached verdict immediately instead of stacking requests.
func (v *Validator) Validate(ctx context.Context) Outcome {
	if v.licenseKey == "" {
		return Outcome{Err: ErrNoLicenseKey}
	}

	now := v.clock.Now()

	v.mu.Lock()
	v.loadCacheLocked()

	if v.cached != nil && v.cached.Validated && v.cached.Age(now) < v.recheck {
		out := Outcome{Success: true, Cached: true, Response: v.cached.Response}
		v.mu.Unlock()
		return out
	}

	if v.inFlight {
		out := v.cachedVerdictLocked(now)
		v.mu.Unlock()
		return out
	}

	v.inFlight = true
	v.mu.Unlock()

	out := v.phoneHome(ctx, now)

	v.mu.Lock()
	v.inFlight = false
	v.mu.Unlock()
	return out
}

// ValidateFeature reports whether the named feature is licensed. An
// unlicensed instance has no features.
func (v *Validator) ValidateFeature(ctx context.Context, name string) bool {
	out := v.Validate(ctx)
	if !out.Success || out.Response == nil {
		return false
	}
	if len(out.Response.Features) > 0 {
		for _, f := range out.Response.Features {
			if f == name {
				return true
			}
		}
		return false
	}
	return TierHasFeature(Tier(out.Response.Tier), Feature(name))
}

// cachedVerdictLocked builds the verdict for a caller arriving while a
// phone-home is already in flight.
func (v *Validator) cachedVerdictLocked(now time.Time) Outcome {
	if v.cached != nil && v.cached.Validated && v.cached.Age(now) < v.grace {
		return Outcome{Success: true, Cached: true, Response: v.cached.Response}
	}
	return Outcome{Cached: true, Err: fmt.Errorf("validation in flight, no usable cached verdict")}
}

// phoneHome performs the signed authority call with retries, then applies
// grace fallback for transient failures.
func (v *Validator) phoneHome(ctx context.Context, now time.Time) Outcome {
	req, err := v.buildRequest(now)
	if err != nil {
		return Outcome{Err: err}
	}

	var resp *wire.ValidationResponse
	err = v.retry.Run(ctx, v.clock, Recoverable, func() error {
		var attemptErr error
		resp, attemptErr = v.authority.Validate(ctx, req)
		return attemptErr
	})

	if err != nil {
		if Recoverable(err) {
			if out, ok := v.graceFallback(now, err); ok {
				return out
			}
		}
		v.logger.Warn().Err(err).Str("license_key", RedactKey(v.licenseKey)).Msg("license validation failed")
		return Outcome{Err: err}
	}

	return v.applyVerdict(resp, now)
}

// applyVerdict persists and returns the authority's answer. An explicit
// invalid verdict is final: no cache rescues it.
func (v *Validator) applyVerdict(resp *wire.ValidationResponse, now time.Time) Outcome {
	cached := &CachedValidation{
		Validated: resp.Valid,
		CheckedAt: now,
		Response:  resp,
	}

	v.mu.Lock()
	v.cached = cached
	v.mu.Unlock()

	if v.cache != nil {
		if err := v.cache.Save(cached); err != nil {
			v.logger.Warn().Err(err).Msg("persist validation cache failed")
		}
	}

	if !resp.Valid {
		return Outcome{Response: resp, Err: fmt.Errorf("%w: %s", ErrLicenseRejected, resp.Error)}
	}

	for _, warning := range resp.Warnings {
		v.logger.Warn().Str("warning", warning).Msg("license warning")
	}
	return Outcome{Success: true, Response: resp}
}

// graceFallback returns the last known good verdict when the authority is
// unreachable and the cache is still inside the grace period. The transport
// error rides along in Err.
func (v *Validator) graceFallback(now time.Time, cause error) (Outcome, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cached == nil || !v.cached.Validated || v.cached.Age(now) >= v.grace {
		return Outcome{}, false
	}

	v.logger.Warn().
		Err(cause).
		Dur("cache_age", v.cached.Age(now)).
		Msg("authority unreachable, honoring cached validation within grace period")
	return Outcome{Success: true, Cached: true, Response: v.cached.Response, Err: cause}, true
}

func (v *Validator) buildRequest(now time.Time) (*wire.ValidationRequest, error) {
	instanceID, err := v.instanceIDOnce()
	if err != nil {
		return nil, err
	}

	timestamp := now.Unix()
	signature, err := v.signer.Sign(v.licenseKey, v.clientVersion, instanceID, timestamp)
	if err != nil {
		return nil, fmt.Errorf("sign validation request: %w", err)
	}

	return &wire.ValidationRequest{
		LicenseKey:    v.licenseKey,
		ClientVersion: v.clientVersion,
		InstanceID:    instanceID,
		Timestamp:     timestamp,
		Signature:     signature,
	}, nil
}

func (v *Validator) instanceIDOnce() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.instanceID != "" {
		return v.instanceID, nil
	}
	id, err := v.identity.Get()
	if err != nil {
		return "", err
	}
	v.instanceID = id
	return id, nil
}

// loadCacheLocked populates the in-memory cache snapshot on first use.
func (v *Validator) loadCacheLocked() {
	if v.loaded || v.cache == nil {
		v.loaded = true
		return
	}
	cached, err := v.cache.Load()
	if err != nil {
		v.logger.Warn().Err(err).Msg("load validation cache failed")
	}
	v.cached = cached
	v.loaded = true
}

// RedactKey masks a license key for logging, keeping only the prefix and
// the trailing checksum fragment.
func RedactKey(key string) string {
	segments := strings.Split(key, "-")
	if len(segments) < 3 {
		return "[REDACTED]"
	}
	return segments[0] + "-…-" + segments[len(segments)-1]
}
