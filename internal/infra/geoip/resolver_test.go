package geoip

import (
	"errors"
	"testing"
)

func TestOpenEmptyPathDisablesLookup(t *testing.T) {
	r, err := Open("  ")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil resolver for empty path")
	}
	if r.Lookup() != nil {
		t.Fatalf("expected nil lookup for nil resolver")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil resolver: %v", err)
	}
}

func TestCountryCodeWithoutDatabase(t *testing.T) {
	var r *Resolver
	if _, err := r.CountryCode("203.0.113.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Fatalf("expected error for missing database")
	}
}
