package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func negotiateFor(t *testing.T, build func(r *http.Request), lookup CountryLookup) string {
	t.Helper()
	var got string
	handler := Language("en", lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LanguageFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if build != nil {
		build(r)
	}
	handler.ServeHTTP(httptest.NewRecorder(), r)
	return got
}

func TestLanguageExplicitHeaderWins(t *testing.T) {
	got := negotiateFor(t, func(r *http.Request) {
		r.Header.Set("X-Story-Language", "id-ID")
		r.Header.Set("Accept-Language", "fr")
	}, nil)
	if got != "id" {
		t.Fatalf("language = %q, want id", got)
	}
}

func TestLanguageFromAcceptLanguage(t *testing.T) {
	got := negotiateFor(t, func(r *http.Request) {
		r.Header.Set("Accept-Language", "ja, en;q=0.8")
	}, nil)
	if got != "ja" {
		t.Fatalf("language = %q, want ja", got)
	}
}

func TestLanguageFromCountryLookup(t *testing.T) {
	lookup := func(ip string) (string, error) { return "ID", nil }
	got := negotiateFor(t, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.7")
	}, lookup)
	if got != "id" {
		t.Fatalf("language = %q, want id", got)
	}
}

func TestLanguageDefault(t *testing.T) {
	if got := negotiateFor(t, nil, nil); got != "en" {
		t.Fatalf("language = %q, want en", got)
	}
}

func TestCountryStoredUppercase(t *testing.T) {
	var got string
	handler := Language("en", func(ip string) (string, error) { return "fr", nil })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = CountryFromContext(r.Context())
		}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"
	handler.ServeHTTP(httptest.NewRecorder(), r)
	if got != "FR" {
		t.Fatalf("country = %q, want FR", got)
	}
}
