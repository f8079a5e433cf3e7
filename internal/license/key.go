// Package license implements the SnowGate entitlement core: the license key
// codec, the signed phone-home validator, the instance identity, and the
// local validation cache.
package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

const (
	// KeyPrefix is the leading segment of every SnowGate license key.
	KeyPrefix = "SNOW"
	// checksumHexLen is the width of the truncated checksum token.
	checksumHexLen = 8
	// dateLayout is the expiry segment format.
	dateLayout = "20060102"
)

var (
	// ErrMalformedKey indicates the key does not have a recognizable shape.
	ErrMalformedKey = errors.New("malformed license key")
	// ErrUnknownTier indicates the tier segment is not a recognized tier.
	ErrUnknownTier = errors.New("unknown license tier")
	// ErrInvalidChecksum indicates the key material does not match its checksum.
	ErrInvalidChecksum = errors.New("invalid license checksum")
	// ErrInvalidDate indicates the expiry segment is not a valid calendar date.
	ErrInvalidDate = errors.New("invalid license expiry date")
)

// Tier represents the subscription level encoded in a key.
type Tier string

const (
	// TierTeam is the entry tier.
	TierTeam Tier = "team"
	// TierProfessional unlocks advanced integrations.
	TierProfessional Tier = "professional"
	// TierEnterprise unlocks all features.
	TierEnterprise Tier = "enterprise"
)

// tierTokens maps each tier to its wire segment.
var tierTokens = map[Tier]string{
	TierTeam:         "TEAM",
	TierProfessional: "PRO",
	TierEnterprise:   "ENT",
}

// ValidTiers returns all recognized tiers.
func ValidTiers() []Tier {
	return []Tier{TierTeam, TierProfessional, TierEnterprise}
}

// IsValid checks if the tier is a recognized value.
func (t Tier) IsValid() bool {
	_, ok := tierTokens[t]
	return ok
}

// tierForToken resolves a wire segment to a tier, case-insensitively.
func tierForToken(token string) (Tier, bool) {
	upper := strings.ToUpper(token)
	for tier, tok := range tierTokens {
		if tok == upper {
			return tier, true
		}
	}
	return "", false
}

// KeyFields is the decoded content of a license key. Seat counts use
// wire.UnlimitedSeats (-1) as the unlimited sentinel; a finite zero is not
// representable on the wire and is rejected by Encode.
type KeyFields struct {
	Tier             Tier
	Org              string
	DeveloperSeats   int
	StakeholderSeats int
	ExpiresAt        time.Time
}

// Unlimited reports whether both roles are uncapped.
func (f *KeyFields) Unlimited() bool {
	return wire.SeatsUnlimited(f.DeveloperSeats) && wire.SeatsUnlimited(f.StakeholderSeats)
}

// Codec encodes and decodes license keys under a shared checksum secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with the given shared secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

// Encode renders the fields as a 6-segment key:
// SNOW-TIER-ORG-DEV/STAKE-YYYYMMDD-CHECKSUM.
// Unlimited seats render as 0; a finite zero-seat count is rejected so the
// 0-means-unlimited encoding stays unambiguous.
func (c *Codec) Encode(f KeyFields) (string, error) {
	token, ok := tierTokens[f.Tier]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, f.Tier)
	}
	if f.Org == "" || strings.Contains(f.Org, "-") {
		return "", fmt.Errorf("%w: org token must be non-empty and dash-free", ErrMalformedKey)
	}
	devSeg, err := seatToken(f.DeveloperSeats)
	if err != nil {
		return "", fmt.Errorf("developer seats: %w", err)
	}
	stakeSeg, err := seatToken(f.StakeholderSeats)
	if err != nil {
		return "", fmt.Errorf("stakeholder seats: %w", err)
	}
	if f.ExpiresAt.IsZero() {
		return "", fmt.Errorf("%w: missing expiry", ErrInvalidDate)
	}

	segments := []string{
		KeyPrefix,
		token,
		f.Org,
		devSeg + "/" + stakeSeg,
		f.ExpiresAt.UTC().Format(dateLayout),
	}
	return strings.Join(segments, "-") + "-" + c.checksum(segments), nil
}

// Decode parses and verifies a license key. The checksum is recomputed and
// compared before any other field is trusted, so a tampered key fails with
// ErrInvalidChecksum regardless of which segment was altered. Both the
// current 6-segment shape and the legacy 5-segment shape (no seat segment,
// unlimited seats for both roles) are accepted.
func (c *Codec) Decode(key string) (*KeyFields, error) {
	segments := strings.Split(strings.TrimSpace(key), "-")
	if len(segments) != 5 && len(segments) != 6 {
		return nil, fmt.Errorf("%w: expected 5 or 6 segments, got %d", ErrMalformedKey, len(segments))
	}

	// Checksum first: it covers every other segment, prefix included, so
	// a flip anywhere in the key material reports as tampering rather
	// than as whichever parse step happens to run first.
	material, checksum := segments[:len(segments)-1], segments[len(segments)-1]
	if !strings.EqualFold(checksum, c.checksum(material)) {
		return nil, ErrInvalidChecksum
	}

	if !strings.EqualFold(segments[0], KeyPrefix) {
		return nil, fmt.Errorf("%w: missing %s prefix", ErrMalformedKey, KeyPrefix)
	}

	tier, ok := tierForToken(segments[1])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, segments[1])
	}

	fields := &KeyFields{
		Tier:             tier,
		Org:              segments[2],
		DeveloperSeats:   wire.UnlimitedSeats,
		StakeholderSeats: wire.UnlimitedSeats,
	}

	dateSeg := segments[len(segments)-2]
	if len(segments) == 6 {
		dev, stake, err := parseSeatSegment(segments[3])
		if err != nil {
			return nil, err
		}
		fields.DeveloperSeats = dev
		fields.StakeholderSeats = stake
	}

	expiry, err := parseExpiry(dateSeg)
	if err != nil {
		return nil, err
	}
	fields.ExpiresAt = expiry

	return fields, nil
}

// checksum computes the truncated HMAC-SHA256 token over the joined
// non-checksum segments.
func (c *Codec) checksum(segments []string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(strings.Join(segments, "-")))
	sum := mac.Sum(nil)
	return strings.ToUpper(hex.EncodeToString(sum)[:checksumHexLen])
}

// seatToken renders a seat count for the wire: unlimited as 0, finite
// counts verbatim. A finite zero is unsupported.
func seatToken(count int) (string, error) {
	if wire.SeatsUnlimited(count) {
		return "0", nil
	}
	if count <= 0 {
		return "", fmt.Errorf("%w: seat count must be positive or unlimited", ErrMalformedKey)
	}
	return strconv.Itoa(count), nil
}

// parseSeatSegment decodes a DEV/STAKE pair, mapping the literal 0 to
// the unlimited sentinel.
func parseSeatSegment(segment string) (dev, stake int, err error) {
	parts := strings.Split(segment, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: bad seat segment %q", ErrMalformedKey, segment)
	}
	dev, err = parseSeatCount(parts[0])
	if err != nil {
		return 0, 0, err
	}
	stake, err = parseSeatCount(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return dev, stake, nil
}

func parseSeatCount(token string) (int, error) {
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad seat count %q", ErrMalformedKey, token)
	}
	if n == 0 {
		return wire.UnlimitedSeats, nil
	}
	return n, nil
}

// parseExpiry decodes an 8-digit calendar date to end of day UTC, the
// fixed reference offset for expiry comparisons.
func parseExpiry(segment string) (time.Time, error) {
	if len(segment) != len(dateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, segment)
	}
	day, err := time.ParseInLocation(dateLayout, segment, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, segment)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC), nil
}
