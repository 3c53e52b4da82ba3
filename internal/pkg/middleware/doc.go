// Package middleware provides HTTP middleware for the siemql web front end.
//
// Available middleware:
//   - RateLimiter: per-client token bucket limiting
//   - RequestID: tags each request with a ULID and exposes it to loggers
//
// Usage:
//
//	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
//	defer rl.Close()
//	handler = middleware.RequestID(rl.Middleware(handler))
package middleware
