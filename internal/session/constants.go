// Package session provides cookie constants shared by the handler and
// middleware packages.
package session

const (
	// CookieName holds an account's session token.
	CookieName = "wl_account_session"

	// VisitorCookieName holds the anonymous id used to bucket landing page
	// visitors into A/B variants.
	VisitorCookieName = "wl_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge matches service.SessionDuration (7 days).
	CookieMaxAge = 7 * 24 * 60 * 60

	// VisitorCookieMaxAge keeps a visitor in the same variant for 90 days.
	VisitorCookieMaxAge = 90 * 24 * 60 * 60

	// MaxVisitorIDLength bounds the visitor cookie value.
	MaxVisitorIDLength = 128
)
