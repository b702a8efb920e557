// Package health provides liveness and readiness probes for the control
// plane's telemetry endpoint, plus a version handler.
//
// Liveness answers while the process runs and never touches
// dependencies. Readiness runs every registered probe (audit storage,
// backing systems) concurrently with a per-probe timeout and reports 503
// when any fails.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("audit_storage", func(ctx context.Context) error {
//	    _, err := store.Count(ctx, &audit.Query{Limit: 1})
//	    return err
//	})
//	mux.HandleFunc("/healthz", checker.LivenessHandler())
//	mux.HandleFunc("/readyz", checker.ReadinessHandler())
package health
