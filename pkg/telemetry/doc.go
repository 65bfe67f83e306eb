// Package telemetry provides observability for the test store.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and a small event publisher behind one Telemetry
// value that the store and the CLI share.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	errCh := tel.Metrics.StartMetricsServer(ctx)
//
// Every store call is wrapped in an Operation:
//
//	op := tel.StartOperation(ctx, "stores.write_test", telemetry.AttrOwner.String(owner))
//	defer func() { op.End(err) }()
//
// which ends a span, records teststore_store_operations_total and
// teststore_store_operation_duration_seconds, and gives the call a logger
// tagged with the operation name and trace id.
//
// Tests can use NewNop, which records nothing.
package telemetry
