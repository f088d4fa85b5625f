// Package fingerprint compares the client context a refresh token was issued
// under against the context presenting it. Matching is deliberately relaxed:
// user agents are compared with version numbers collapsed, and IP addresses
// at subnet granularity (/24 for IPv4, /64 for IPv6) to tolerate mobile and
// NAT address churn while still catching cross-network session theft.
package fingerprint

import (
	"hash/fnv"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/domain"
)

// Config toggles the two sub-checks independently. A disabled check always
// passes; when both are enabled, both must pass.
type Config struct {
	CheckUserAgent bool
	CheckIPAddress bool
}

// Validator compares stored and presented client fingerprints.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

var (
	versionPattern    = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Validate reports whether the presented client context matches the stored
// one under the configured checks. A normal mismatch returns false, never an
// error; the caller decides the consequence.
func (v *Validator) Validate(stored, current domain.ClientContext, cfg Config) bool {
	valid := true

	if cfg.CheckUserAgent {
		valid = v.matchUserAgent(stored.UserAgent, current.UserAgent)
	}

	if valid && cfg.CheckIPAddress {
		valid = v.matchIPAddress(stored.IPAddress, current.IPAddress)
	}

	return valid
}

func (v *Validator) matchUserAgent(stored, current string) bool {
	if stored == "" || current == "" {
		return false
	}

	normalizedStored := NormalizeUserAgent(stored)
	normalizedCurrent := NormalizeUserAgent(current)

	valid := normalizedStored == normalizedCurrent
	if !valid {
		log.Warn().
			Str("expected_hash", hashForLogging(normalizedStored)).
			Str("got_hash", hashForLogging(normalizedCurrent)).
			Msg("user agent mismatch")
	}
	return valid
}

// NormalizeUserAgent strips the parts of a user-agent string that change
// between minor releases: version numbers become "X.X", whitespace is
// collapsed and the result lowercased.
func NormalizeUserAgent(userAgent string) string {
	normalized := versionPattern.ReplaceAllString(userAgent, "X.X")
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	return strings.ToLower(normalized)
}

func (v *Validator) matchIPAddress(stored, current string) bool {
	if stored == "" || current == "" {
		return false
	}

	valid := ipAddressMatch(stored, current)
	if !valid {
		log.Warn().
			Str("expected_subnet", subnetForLogging(stored)).
			Str("got_subnet", subnetForLogging(current)).
			Msg("ip address mismatch")
	}
	return valid
}

func ipAddressMatch(stored, current string) bool {
	storedAddr, errStored := netip.ParseAddr(stored)
	currentAddr, errCurrent := netip.ParseAddr(current)
	if errStored != nil || errCurrent != nil {
		// Unparsable on either side: only an exact string match passes.
		return stored == current
	}

	storedAddr = storedAddr.Unmap()
	currentAddr = currentAddr.Unmap()

	if storedAddr.Is4() && currentAddr.Is4() {
		return sameSubnet24(storedAddr.As4(), currentAddr.As4())
	}
	if storedAddr.Is6() && currentAddr.Is6() {
		return sameSubnet64(storedAddr.As16(), currentAddr.As16())
	}

	// Mixed families never share a subnet.
	return false
}

func sameSubnet24(a, b [4]byte) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2]
}

func sameSubnet64(a, b [16]byte) bool {
	for i := 0; i < 8; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hashForLogging returns a short hash so mismatches can be correlated in
// logs without exposing the raw value.
func hashForLogging(value string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

// subnetForLogging renders the matched prefix of an address for log output.
func subnetForLogging(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "unknown"
	}
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return strconv.Itoa(int(b[0])) + "." + strconv.Itoa(int(b[1])) + "." + strconv.Itoa(int(b[2])) + ".x"
	}
	prefix, err := addr.Prefix(64)
	if err != nil {
		return "unknown"
	}
	return prefix.String()
}
