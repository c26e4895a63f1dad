package device

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"fintrack/internal/entity"

	"github.com/sirupsen/logrus"
)

const defaultLookupTimeout = 5 * time.Second

var ErrLookupFailed = errors.New("geolocation lookup failed")

// Provider resolves an IP address to an approximate location.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (entity.Location, error)
}

// Locator resolves locations through a cache and an ordered provider chain.
type Locator struct {
	cache     Cache
	providers []Provider
	timeout   time.Duration
	logger    logrus.FieldLogger
}

func NewLocator(cache Cache, timeout time.Duration, logger logrus.FieldLogger, providers ...Provider) *Locator {
	if cache == nil {
		cache = NopCache{}
	}
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Locator{cache: cache, providers: providers, timeout: timeout, logger: logger}
}

// Locate never fails: private addresses map to the local pseudo-location and
// provider outages to the unknown location.
func (l *Locator) Locate(ctx context.Context, ip string) entity.Location {
	if IsPrivateIP(ip) {
		return LocalLocation(ip)
	}
	if loc, ok := l.cache.Get(ctx, ip); ok {
		return loc
	}

	for _, provider := range l.providers {
		loc, err := l.lookup(ctx, provider, ip)
		if err != nil {
			l.logger.WithError(err).WithFields(logrus.Fields{
				"provider": provider.Name(),
				"ip":       ip,
			}).Warn("geolocation provider failed")
			continue
		}
		loc.IP = ip
		loc.Formatted = FormatLocation(loc)
		l.cache.Set(ctx, ip, loc)
		return loc
	}
	return UnknownLocation(ip)
}

func (l *Locator) lookup(ctx context.Context, provider Provider, ip string) (entity.Location, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return provider.Lookup(callCtx, ip)
}

func IsPrivateIP(raw string) bool {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return strings.EqualFold(strings.TrimSpace(raw), "localhost")
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

func LocalLocation(ip string) entity.Location {
	return entity.Location{
		IP:        ip,
		Country:   "Local",
		City:      "Local Network",
		Region:    "Local",
		Timezone:  "UTC",
		ISP:       "Local Network",
		Formatted: "Local Network",
	}
}

func UnknownLocation(ip string) entity.Location {
	return entity.Location{
		IP:        ip,
		Country:   "Unknown",
		City:      "Unknown",
		Region:    "Unknown",
		Timezone:  "Unknown",
		ISP:       "Unknown",
		Formatted: "Unknown Location",
	}
}

// FormatLocation joins city, region and country, skipping blanks and repeats.
func FormatLocation(loc entity.Location) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{loc.City, loc.Region, loc.Country} {
		part = strings.TrimSpace(part)
		if part == "" || (len(parts) > 0 && parts[len(parts)-1] == part) {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return "Unknown Location"
	}
	return strings.Join(parts, ", ")
}
