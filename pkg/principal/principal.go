// Package principal carries the authenticated actor through the request
// context. Ledger operations and audit columns read the acting user from
// here instead of any ambient session state.
package principal

import (
	"context"
	"fmt"
)

// Principal represents the authenticated user performing an action.
type Principal struct {
	// ID is the unique identifier of the user
	ID string `json:"id"`

	// Username is the login name
	Username string `json:"username"`

	// FullName is the user's display name
	FullName string `json:"full_name"`

	// Role is the user's role, used for capability lookups
	Role string `json:"role"`
}

// String returns a string representation for logging
func (p *Principal) String() string {
	if p == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", p.FullName, p.Username)
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const principalContextKey contextKey = "principal"

// FromContext retrieves the Principal from the context.
// Returns nil if none is present (e.g., system operations).
func FromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// WithPrincipal returns a new context with the Principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey, p)
}

// MustFromContext retrieves the Principal from the context.
// Panics if none is present. Use only behind the auth middleware.
func MustFromContext(ctx context.Context) *Principal {
	p := FromContext(ctx)
	if p == nil {
		panic("principal not found in context")
	}
	return p
}

// System returns a Principal representing the system itself.
// Use this for bootstrap and maintenance operations.
func System() *Principal {
	return &Principal{
		ID:       "00000000-0000-0000-0000-000000000000",
		Username: "system",
		FullName: "System",
	}
}

// IsSystem returns true if the principal represents the system.
func (p *Principal) IsSystem() bool {
	if p == nil {
		return true
	}
	return p.ID == "00000000-0000-0000-0000-000000000000"
}
