package middleware

// contextKey is a private type for context keys defined by this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey string
