// Package middleware provides the HTTP middleware chain used by the server.
//
// Middleware order (outermost first):
//
//  1. Recovery: turns panics into a 500 JSON body
//  2. RequestID: assigns X-Request-ID
//  3. Logging: one structured line per request
//  4. CORS: only when origins are configured
//  5. Timeout: bounds the request context
//
// APIKey is applied per route, to /detect_img only.
package middleware
