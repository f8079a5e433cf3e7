package license

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// instanceIDLen is the truncated length of the derived identifier.
const instanceIDLen = 32

// instanceIDFile is the filename under the config dir holding the persisted id.
const instanceIDFile = "instance_id"

// Identity derives and persists a stable per-machine identifier. Seat
// tracking needs stability across restarts, not global uniqueness: the id is
// persisted on first computation so later runs reuse it even if a hardware
// input disappears.
type Identity struct {
	configDir string
	logger    zerolog.Logger
}

// NewIdentity creates an identity provider persisting under configDir.
func NewIdentity(configDir string, logger zerolog.Logger) *Identity {
	return &Identity{
		configDir: configDir,
		logger:    logger.With().Str("component", "instance_identity").Logger(),
	}
}

// Get returns the instance identifier, computing and persisting it on first
// use. Derivation failures fall back to a random identifier, also persisted.
func (i *Identity) Get() (string, error) {
	path := filepath.Join(i.configDir, instanceIDFile)

	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	id, err := deriveInstanceID()
	if err != nil {
		i.logger.Warn().Err(err).Msg("hardware-derived instance id unavailable, using random id")
		id, err = randomInstanceID()
		if err != nil {
			return "", fmt.Errorf("generate instance id: %w", err)
		}
	}

	if err := os.MkdirAll(i.configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist instance id: %w", err)
	}

	i.logger.Info().Str("instance_id", id).Msg("instance id created")
	return id, nil
}

// deriveInstanceID hashes hostname, platform, processor descriptor, and the
// first usable hardware address into a fixed-length identifier.
func deriveInstanceID() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("get hostname: %w", err)
	}

	parts := []string{hostname, runtime.GOOS + "/" + runtime.GOARCH}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		parts = append(parts, infos[0].ModelName)
	}

	mac, err := firstHardwareAddr()
	if err != nil {
		return "", err
	}
	parts = append(parts, mac)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:instanceIDLen], nil
}

// firstHardwareAddr returns the first non-loopback, non-placeholder MAC.
func firstHardwareAddr() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addr := iface.HardwareAddr.String()
		if addr == "" || addr == "00:00:00:00:00:00" {
			continue
		}
		return addr, nil
	}
	return "", fmt.Errorf("no usable hardware address")
}

func randomInstanceID() (string, error) {
	buf := make([]byte, instanceIDLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
