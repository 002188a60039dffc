package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// voiceLocales are the languages the avatar voice catalog covers. The first
// entry is the fallback.
var voiceLocales = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.MustParse("en-AU"),
}

var voiceMatcher = language.NewMatcher(voiceLocales)

var regionLocales = map[string]string{
	"US": "en-US",
	"GB": "en-GB",
	"IE": "en-GB",
	"AU": "en-AU",
	"NZ": "en-AU",
}

// Locale stores the best voice locale (a BCP 47 tag from the voice catalog)
// and the caller's country, when known, in the request context.
func Locale(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			ctx := context.WithValue(r.Context(), LocaleKey, detectLocale(r, country))
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, country string) string {
	if locale, ok := regionLocales[strings.ToUpper(country)]; ok {
		return locale
	}
	var tags []language.Tag
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		if tag, err := language.Parse(strings.ReplaceAll(v, "_", "-")); err == nil {
			tags = append(tags, tag)
		}
	}
	if accepted, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil {
		tags = append(tags, accepted...)
	}
	if len(tags) == 0 {
		return voiceLocales[0].String()
	}
	_, idx, confidence := voiceMatcher.Match(tags...)
	if confidence == language.No {
		return voiceLocales[0].String()
	}
	return voiceLocales[idx].String()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LocaleFromContext returns the voice locale stored by Locale, or en-US.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return voiceLocales[0].String()
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the request.
// Explicit locale regions win over edge headers, which win over GeoIP.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	for _, key := range []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" && !strings.EqualFold(val, "XX") {
			return strings.ToUpper(val)
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// localeRegion returns the region subtag of the first entry in a locale list.
func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		tag, err := language.Parse(strings.ReplaceAll(token, "_", "-"))
		if err != nil {
			return ""
		}
		if region, confidence := tag.Region(); confidence == language.Exact {
			return region.String()
		}
		return ""
	}
	return ""
}
