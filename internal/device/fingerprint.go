package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"

	"fintrack/internal/entity"
)

const (
	deviceIDLength = 16
	loopbackIP     = "127.0.0.1"
)

// RequestInfo carries the request attributes fingerprinting depends on.
type RequestInfo struct {
	UserAgent string
	// ProxyIP is the client IP as resolved by a trusted proxy-aware extractor.
	ProxyIP string
	// RemoteAddr is the socket peer, host:port or bare host.
	RemoteAddr   string
	ForwardedFor string
}

type Fingerprint struct {
	DeviceID   string
	DeviceName string
	DeviceType entity.DeviceType
	Browser    string
	OS         string
	Location   entity.Location
	UserAgent  string
	IP         string
}

// Session converts the fingerprint into a session record; timestamps are set by SessionList.Upsert.
func (f Fingerprint) Session() entity.Session {
	return entity.Session{
		DeviceID:   f.DeviceID,
		DeviceName: f.DeviceName,
		DeviceType: f.DeviceType,
		Browser:    f.Browser,
		OS:         f.OS,
		Location:   f.Location,
	}
}

// ClientIP picks the first available of proxy IP, socket address, first
// X-Forwarded-For entry, then loopback.
func ClientIP(info RequestInfo) string {
	if ip := strings.TrimSpace(info.ProxyIP); ip != "" {
		return ip
	}
	if addr := strings.TrimSpace(info.RemoteAddr); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}
	if xff := strings.TrimSpace(info.ForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return loopbackIP
}

// DeviceID hashes user agent and IP into a short stable identifier.
func DeviceID(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + ip))
	return hex.EncodeToString(sum[:])[:deviceIDLength]
}

type Fingerprinter struct {
	locator *Locator
}

func NewFingerprinter(locator *Locator) *Fingerprinter {
	return &Fingerprinter{locator: locator}
}

// Identify computes the device fingerprint of a request. Geolocation problems
// degrade to an unknown location; the only error is a done context.
func (f *Fingerprinter) Identify(ctx context.Context, info RequestInfo) (Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return Fingerprint{}, err
	}

	ip := ClientIP(info)
	traits := Classify(info.UserAgent)
	fp := Fingerprint{
		DeviceID:   DeviceID(info.UserAgent, ip),
		DeviceName: traits.Name,
		DeviceType: traits.Type,
		Browser:    traits.Browser,
		OS:         traits.OS,
		UserAgent:  info.UserAgent,
		IP:         ip,
	}

	if f.locator != nil {
		fp.Location = f.locator.Locate(ctx, ip)
	} else {
		fp.Location = UnknownLocation(ip)
	}
	return fp, nil
}
