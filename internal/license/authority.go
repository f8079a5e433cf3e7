package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

var (
	// ErrNoLicenseKey indicates no key is configured. This is a
	// configuration error: never retried, no grace fallback.
	ErrNoLicenseKey = errors.New("no license key configured")
	// ErrLicenseRejected indicates the authority explicitly refused the
	// license. Non-recoverable: retries and grace fallback do not apply.
	ErrLicenseRejected = errors.New("license rejected by authority")
	// ErrAuthorityUnavailable indicates a transient failure reaching the
	// authority: retried with backoff and eligible for grace fallback.
	ErrAuthorityUnavailable = errors.New("license authority unavailable")
)

// validatePath is the authority's validation endpoint.
const validatePath = "/api/v1/license/validate"

// AuthorityClient speaks to the license authority over HTTP.
type AuthorityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAuthorityClient creates a client for the authority at baseURL. The
// timeout bounds each attempt; a timed-out attempt counts as one
// recoverable retry.
func NewAuthorityClient(baseURL string, timeout time.Duration) *AuthorityClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AuthorityClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Validate submits a signed validation request. Transport failures and
// server errors wrap ErrAuthorityUnavailable; an explicit refusal (4xx)
// wraps ErrLicenseRejected. A 200 response is returned as-is; the caller
// inspects Valid.
func (c *AuthorityClient) Validate(ctx context.Context, req *wire.ValidationRequest) (*wire.ValidationResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal validation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+validatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthorityUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrAuthorityUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: authority returned %d", ErrAuthorityUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: authority returned %d: %s", ErrLicenseRejected, resp.StatusCode, string(body))
	}

	var result wire.ValidationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrAuthorityUnavailable, err)
	}
	return &result, nil
}

// Recoverable reports whether an error is worth retrying: transient
// failures are, explicit rejections and configuration errors are not.
func Recoverable(err error) bool {
	return errors.Is(err, ErrAuthorityUnavailable)
}
