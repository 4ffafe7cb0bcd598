package i18n

import (
	"net/http"
)

// Middleware resolves the response locale from Accept-Language, stores it in
// the request context and echoes it back as Content-Language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Language", locale)

		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}
