package clientip

import (
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Unknown is returned when no address can be derived from the request.
const Unknown = "unknown"

// TrustedProxies holds proxy CIDR allowlist used for forwarded-header trust.
type TrustedProxies struct {
	nets []*net.IPNet
}

// NewTrustedProxies parses CIDR/IP entries into a trusted proxy allowlist.
// Empty input means "trust none".
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, cidr, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, err
			}
			nets = append(nets, cidr)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, &net.ParseError{Type: "IP address", Text: entry}
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{
			IP:   ip,
			Mask: net.CIDRMask(bits, bits),
		})
	}
	if len(nets) == 0 {
		return nil, nil
	}
	return &TrustedProxies{nets: nets}, nil
}

// Contains reports whether the given IP is inside trusted proxy ranges.
func (t *TrustedProxies) Contains(ip net.IP) bool {
	if t == nil || ip == nil {
		return false
	}
	for _, n := range t.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver derives the requester identifier used for upvote uniqueness.
type Resolver struct {
	trusted  *TrustedProxies
	trustAll bool
	hashKey  []byte
}

// NewResolver builds a Resolver. trustAll makes every peer a trusted proxy, so the
// leftmost X-Forwarded-For hop wins. A non-empty hashKey turns identifiers into keyed
// BLAKE2b fingerprints so raw addresses are never stored.
func NewResolver(trustedCIDRs []string, trustAll bool, hashKey string) (*Resolver, error) {
	trusted, err := NewTrustedProxies(trustedCIDRs)
	if err != nil {
		return nil, err
	}
	if len(hashKey) > blake2b.Size {
		return nil, errors.New("requester hash key must be at most 64 bytes")
	}
	return &Resolver{trusted: trusted, trustAll: trustAll, hashKey: []byte(hashKey)}, nil
}

// RequesterID returns the stored identifier for the caller.
func (r *Resolver) RequesterID(req *http.Request) string {
	ip := r.ClientIP(req)
	if len(r.hashKey) == 0 || ip == Unknown {
		return ip
	}
	return Fingerprint(r.hashKey, ip)
}

// ClientIP resolves the caller IP from request metadata.
// Forwarded headers are trusted only when the direct peer is a trusted proxy.
func (r *Resolver) ClientIP(req *http.Request) string {
	remoteIP := parseRemoteIP(req.RemoteAddr)
	if remoteIP == nil && !r.trustAll {
		if raw := strings.TrimSpace(req.RemoteAddr); raw != "" {
			return raw
		}
		return Unknown
	}
	if !r.isTrusted(remoteIP) {
		return remoteIP.String()
	}

	forwarded := parseForwardedFor(req.Header.Get("X-Forwarded-For"))
	if len(forwarded) > 0 {
		if r.trustAll {
			return forwarded[0].String()
		}
		chain := append(forwarded, remoteIP)
		for i := len(chain) - 1; i >= 0; i-- {
			if !r.trusted.Contains(chain[i]) {
				return chain[i].String()
			}
		}
		return chain[0].String()
	}

	if realIP := parseIP(req.Header.Get("X-Real-IP")); realIP != nil {
		return realIP.String()
	}
	if remoteIP == nil {
		return Unknown
	}
	return remoteIP.String()
}

func (r *Resolver) isTrusted(ip net.IP) bool {
	if r.trustAll {
		return true
	}
	return r.trusted.Contains(ip)
}

// Fingerprint returns the hex keyed BLAKE2b-256 digest of value.
func Fingerprint(key []byte, value string) string {
	h, err := blake2b.New256(key)
	if err != nil {
		return value
	}
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

func parseForwardedFor(raw string) []net.IP {
	parts := strings.Split(raw, ",")
	out := make([]net.IP, 0, len(parts))
	for _, part := range parts {
		ip := parseIP(part)
		if ip == nil {
			continue
		}
		out = append(out, ip)
	}
	return out
}

func parseRemoteIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return parseIP(host)
	}
	return parseIP(addr)
}

func parseIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return net.ParseIP(raw)
}
