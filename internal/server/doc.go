// Package server provides the HTTP server.
//
// The server uses the Gin web framework. ServerMode "dev" runs gin in debug
// mode, "prod" in release mode.
//
// # Middleware Stack
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Logger (request/response logging, "http" logger)       │
//	│  Recovery (ginzap.RecoveryWithZap, stack traces)        │
//	│  Metrics (requests_total, request_duration_seconds)     │
//	├─────────────────────────────────────────────────────────┤
//	│  /health    /metrics                                    │
//	├─────────────────────────────────────────────────────────┤
//	│  /api/v1    Auth (HS256 bearer token, when enabled)     │
//	│             Handlers (registered via callback)          │
//	└─────────────────────────────────────────────────────────┘
//
// # Lifecycle
//
//	srv, err := server.NewServer(cfg, h.Register,
//	    server.WithMetrics(registry, registry),
//	    server.WithBackend(st.Driver().Name()))
//	go srv.Start(ctx)
//	...
//	srv.Stop(shutdownCtx)
//
// Stop performs a graceful shutdown, waiting for in-flight requests.
package server
