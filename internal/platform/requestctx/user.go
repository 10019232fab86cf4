// Package requestctx carries per-request identity and locale through context.
package requestctx

import "context"

type (
	callerContextKey struct{}
	localeContextKey struct{}
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID      string
	IsStaff     bool
	IsSuperuser bool
}

// IsAdmin reports whether the caller may use admin-only operations.
func (c Caller) IsAdmin() bool {
	return c.IsStaff || c.IsSuperuser
}

// Authenticated reports whether the caller carries a user identity.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// WithCaller stores the caller in context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller stored in context, or the anonymous caller.
func CallerFromContext(ctx context.Context) Caller {
	if ctx == nil {
		return Caller{}
	}
	caller, _ := ctx.Value(callerContextKey{}).(Caller)
	return caller
}

// WithUserID stores a plain user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return WithCaller(ctx, Caller{UserID: userID})
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	return CallerFromContext(ctx).UserID
}

// WithLocale stores the resolved locale in context.
func WithLocale(ctx context.Context, locale string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the locale stored in context, empty when unset.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(localeContextKey{}).(string)
	return value
}
