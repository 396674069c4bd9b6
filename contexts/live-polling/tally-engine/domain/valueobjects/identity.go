package valueobjects

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
)

// ConnectionMetadata is the connection information available when a voter
// opens a session.
type ConnectionMetadata struct {
	ForwardedFor string
	RemoteAddr   string
}

// IdentityKey is a storage-safe voter key. It only contains [A-Za-z0-9_-] and
// %XX escapes, so it can be used as a map field, key segment or path segment
// by any persistence adapter.
type IdentityKey string

func (k IdentityKey) String() string {
	return string(k)
}

// Address returns the canonical network address the key was derived from.
func (k IdentityKey) Address() (string, error) {
	return UnescapeKey(string(k))
}

// ResolveIdentity derives the voter identity for a connection. The first
// X-Forwarded-For hop wins over the transport peer address.
func ResolveIdentity(meta ConnectionMetadata) IdentityKey {
	return IdentityKey(EscapeKey(CanonicalAddress(meta)))
}

// CanonicalAddress picks the best client address from meta and normalizes it:
// ports and IPv6 zones are dropped, IPv4-mapped IPv6 addresses are unmapped and
// IPv6 is rendered in its compressed form.
func CanonicalAddress(meta ConnectionMetadata) string {
	raw := ""
	if forwarded := strings.TrimSpace(meta.ForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		raw = strings.TrimSpace(first)
	}
	if raw == "" {
		raw = strings.TrimSpace(meta.RemoteAddr)
	}
	return normalizeAddress(raw)
}

func normalizeAddress(raw string) string {
	host := raw
	if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().WithZone("").String()
	}
	return strings.ToLower(host)
}

const upperHex = "0123456789ABCDEF"

// EscapeKey encodes every byte outside [A-Za-z0-9_-] as %XX with upper-case
// hex digits. UnescapeKey is its exact inverse.
func EscapeKey(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if isKeySafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

// UnescapeKey decodes a key produced by EscapeKey. Keys that EscapeKey could
// not have produced (bare reserved bytes, lower-case hex, escaped safe bytes,
// truncated escapes) are rejected so the mapping stays one-to-one.
func UnescapeKey(key string) (string, error) {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case isKeySafe(c):
			b.WriteByte(c)
		case c == '%':
			if i+2 >= len(key) {
				return "", fmt.Errorf("%w: truncated escape at %d", domainerrors.ErrInvalidIdentity, i)
			}
			hi, okHi := fromUpperHex(key[i+1])
			lo, okLo := fromUpperHex(key[i+2])
			if !okHi || !okLo {
				return "", fmt.Errorf("%w: bad escape %q", domainerrors.ErrInvalidIdentity, key[i:i+3])
			}
			decoded := hi<<4 | lo
			if isKeySafe(decoded) {
				return "", fmt.Errorf("%w: non-canonical escape %q", domainerrors.ErrInvalidIdentity, key[i:i+3])
			}
			b.WriteByte(decoded)
			i += 2
		default:
			return "", fmt.Errorf("%w: reserved byte %q at %d", domainerrors.ErrInvalidIdentity, c, i)
		}
	}
	return b.String(), nil
}

func isKeySafe(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}

func fromUpperHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
