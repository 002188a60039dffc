package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver has no database loaded.
var ErrUnavailable = errors.New("geoip: resolver unavailable")

// Resolver maps client IPs to ISO country codes using a MaxMind database.
// The country feeds the default voice choice for avatar requests.
type Resolver struct {
	reader *geoip2.Reader
}

// Open loads the database at path. An empty path yields a nil resolver, which
// callers treat as "no lookup available".
func Open(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// CountryCode returns the upper-case ISO country code for ip, or "" when the
// database has no country for it.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return "", nil
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil {
		return "", nil
	}
	return strings.ToUpper(record.Country.IsoCode), nil
}

// Lookup adapts the resolver to the middleware's lookup function. A nil
// resolver yields a nil function.
func (r *Resolver) Lookup() func(ip string) (string, error) {
	if r == nil {
		return nil
	}
	return r.CountryCode
}

// Close releases the database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
