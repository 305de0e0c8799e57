// Package auth provides authentication context helpers.
//
// It is imported by both middleware and handler packages, so it must not
// import either of them.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/waitlist/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const accountContextKey contextKey = "account"

// GetAccount retrieves the authenticated account from the context.
//
// Returns nil if no account is authenticated.
//
// Usage:
//
//	account := auth.GetAccount(r.Context())
//	if account == nil {
//	    // Handle unauthenticated request
//	}
func GetAccount(ctx context.Context) *domain.Account {
	account, ok := ctx.Value(accountContextKey).(*domain.Account)
	if !ok {
		return nil
	}
	return account
}

// GetAccountFromRequest is GetAccount over the request's context.
func GetAccountFromRequest(r *http.Request) *domain.Account {
	return GetAccount(r.Context())
}

// SetAccount stores an account in the context. Called by the auth middleware
// after a session token has been validated.
func SetAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}
