// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health probes and graceful shutdown.
//
// # Logging
//
// Loggers are logrus; packages accept a logrus.FieldLogger:
//
//	logger, err := observability.NewLogger("info", observability.FormatJSON, os.Stdout)
//	logger.WithField("member_id", id).Info("session created")
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordResolution("cookie_session")
//
// Record helpers are safe to call on a nil *Metrics.
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	router.HandleFunc("/healthz", checker.Liveness)
//	router.HandleFunc("/readyz", checker.Readiness)
package observability
