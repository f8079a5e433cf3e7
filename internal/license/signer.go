package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// signerInfo labels the HKDF derivation so signing keys cannot collide with
// other uses of the shared secret.
const signerInfo = "snowgate-request-v1"

// DefaultSignatureSkew is how far a request timestamp may drift from the
// authority's clock before the request is treated as a replay.
const DefaultSignatureSkew = 5 * time.Minute

// Signer produces and verifies per-request signatures binding the license
// key, client version, instance id, and timestamp. The signing key is
// derived per instance from the shared secret, so a signature captured from
// one machine cannot be replayed from another.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer over the shared secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign computes the hex signature for one validation request.
func (s *Signer) Sign(licenseKey, version, instanceID string, timestamp int64) (string, error) {
	key, err := s.deriveKey(instanceID)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(signingMaterial(licenseKey, version, instanceID, timestamp))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a signature in constant time.
func (s *Signer) Verify(licenseKey, version, instanceID string, timestamp int64, signature string) bool {
	expected, err := s.Sign(licenseKey, version, instanceID, timestamp)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// Fresh reports whether a request timestamp is within the skew window of
// now. Stale timestamps are rejected to resist replay.
func Fresh(timestamp int64, now time.Time, skew time.Duration) bool {
	ts := time.Unix(timestamp, 0)
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	return diff <= skew
}

// deriveKey expands the shared secret into a per-instance signing key.
func (s *Signer) deriveKey(instanceID string) ([]byte, error) {
	r := hkdf.New(sha256.New, s.secret, nil, []byte(signerInfo+"|"+instanceID))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

func signingMaterial(licenseKey, version, instanceID string, timestamp int64) []byte {
	return []byte(strings.Join([]string{
		licenseKey,
		version,
		instanceID,
		strconv.FormatInt(timestamp, 10),
	}, "\n"))
}
