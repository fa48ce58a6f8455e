package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type languageContextKey struct{}
type countryContextKey struct{}

var (
	LanguageKey = languageContextKey{}
	CountryKey  = countryContextKey{}
)

// supported lists the languages stories can be narrated in. The first entry
// is the matcher's fallback.
var supported = []language.Tag{
	language.English,
	language.Indonesian,
	language.Spanish,
	language.French,
	language.German,
	language.Japanese,
}

var matcher = language.NewMatcher(supported)

// countryDefaults maps an ISO country code to a story language for clients
// that send no language headers at all.
var countryDefaults = map[string]string{
	"ID": "id",
	"JP": "ja",
	"ES": "es",
	"MX": "es",
	"AR": "es",
	"FR": "fr",
	"DE": "de",
	"AT": "de",
}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// Language negotiates the story language for the request: the explicit
// X-Story-Language header first, then Accept-Language, then a GeoIP country
// default, then defaultLang.
func Language(defaultLang string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			lang := negotiate(r, defaultLang, country)
			ctx := context.WithValue(r.Context(), LanguageKey, lang)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func negotiate(r *http.Request, fallback, country string) string {
	if v := r.Header.Get("X-Story-Language"); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return match(tag)
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf > language.No {
				return base(supported[idx])
			}
		}
	}
	if lang, ok := countryDefaults[strings.ToUpper(country)]; ok {
		return lang
	}
	if fallback != "" {
		return fallback
	}
	return "en"
}

func match(tag language.Tag) string {
	_, idx, _ := matcher.Match(tag)
	return base(supported[idx])
}

func base(tag language.Tag) string {
	b, _ := tag.Base()
	return b.String()
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

// LanguageFromContext returns the negotiated story language, defaulting to
// English.
func LanguageFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LanguageKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	if v := r.Header.Get("X-Country"); v != "" {
		return strings.ToUpper(strings.TrimSpace(v))
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}
