// Package i18nhttp resolves the request locale for HTTP surfaces.
package i18nhttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/i18n/catalog"
	"github.com/louisbranch/oilandrope/internal/platform/requestctx"
	"golang.org/x/text/language"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "oar_lang"
)

// ResolveLocale determines the best supported locale for the request. The
// bool reports whether the locale came from the query parameter and should
// be persisted as a cookie.
func ResolveLocale(r *http.Request) (string, bool) {
	bundle := catalog.Default()
	if r == nil {
		return catalog.BaseLocale, false
	}
	if value := strings.TrimSpace(r.URL.Query().Get(LangParam)); value != "" {
		if locale, ok := bundle.MatchString(value); ok {
			return locale, true
		}
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if locale, ok := bundle.MatchString(cookie.Value); ok {
			return locale, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return bundle.Match(tags...), false
		}
	}
	return catalog.BaseLocale, false
}

// SetLanguageCookie persists the selected locale on the response.
func SetLanguageCookie(w http.ResponseWriter, locale string) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    locale,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware stores the resolved locale in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale, persist := ResolveLocale(r)
		if persist {
			SetLanguageCookie(w, locale)
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), locale)))
	})
}
