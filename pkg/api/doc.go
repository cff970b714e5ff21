// Package api provides the HTTP server for the roster backend.
//
// # Overview
//
// Server assembles the gorilla/mux router and the middleware chain that every
// request passes through:
//
//	otelhttp -> request id -> panic recovery -> access log -> CORS -> router
//
// and, for matched routes,
//
//	http metrics -> identity resolver -> rate limit -> guard -> handler
//
// The identity resolver attaches an auth.Principal to every request, so
// handlers never parse credentials themselves. Endpoints that need a caller
// are wrapped in middleware.RequireGuard.
//
// # Routes
//
//	GET    /auth/github            start the GitHub login (pkg/sso)
//	GET    /auth/github/callback   finish the login, set the session cookie
//	POST   /auth/logout            Authenticated
//	GET    /auth/me                Authenticated
//	POST   /admin/bots             Admin, returns the raw API key once
//	GET    /admin/bots             Admin
//	DELETE /admin/bots/{id}        Admin
//	GET    /healthz, /readyz, /metrics
//
// # Usage
//
//	server := api.NewServer(api.Config{AllowedOrigins: origins}, deps)
//	httpServer := &http.Server{Addr: addr, Handler: server}
package api
