package session

import (
	"net/http"
	"strings"
)

// SetCookie sets the account session cookie.
//
// The cookie is HttpOnly, SameSite=Lax and Secure when isSecure is set.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the account session cookie from the client.
func ClearCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// VisitorID returns the visitor cookie's value. It returns "" when the cookie
// is absent, blank or longer than MaxVisitorIDLength, so callers issue a new id.
func VisitorID(r *http.Request) string {
	c, err := r.Cookie(VisitorCookieName)
	if err != nil {
		return ""
	}
	id := strings.TrimSpace(c.Value)
	if len(id) > MaxVisitorIDLength {
		return ""
	}
	return id
}

// SetVisitorCookie stores the visitor id used for variant bucketing.
// Landing pages may be embedded cross-site, so SameSite is Lax rather than Strict.
func SetVisitorCookie(w http.ResponseWriter, id string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     CookiePath,
		MaxAge:   VisitorCookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
