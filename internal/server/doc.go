// Package server provides the HTTP server for prioschedd.
//
// # Architecture Overview
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                         HTTP Server                           │
//	├───────────────────────────────────────────────────────────────┤
//	│                       Middleware Stack                        │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Logger (ginzap request logging)                        │  │
//	│  │  Recovery (panic recovery with zap logging)             │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	├───────────────────────────────────────────────────────────────┤
//	│  GET /health          GET /metrics (optional)                 │
//	├───────────────────────────────────────────────────────────────┤
//	│                       Router (/api/v1)                        │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Bearer auth (optional, HS256)                          │  │
//	│  │  Handlers (registered via callback)                     │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	└───────────────────────────────────────────────────────────────┘
//
// # Server Modes
//
// ServerMode "dev" runs gin in debug mode, "prod" in release mode. Both serve
// plain HTTP on Server.HTTPPort.
//
// # Authentication
//
// When Auth.Enabled is set, every /api/v1 route requires an
// "Authorization: Bearer <token>" header carrying an HS256 JWT signed with the
// secret read from Auth.SecretFile. Tokens must carry an expiry. /health and
// /metrics stay open.
//
// # Server Lifecycle
//
//	srv, err := server.NewServer(cfg, func(router *gin.RouterGroup) {
//	    v1.RegisterHandlers(router, handler)
//	}, server.WithMetrics(observer.Handler()))
//
//	go srv.Start(ctx) // blocks until Stop
//
//	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
//	defer cancel()
//	srv.Stop(shutdownCtx)
package server
