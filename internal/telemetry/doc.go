// Package telemetry provides OpenTelemetry instrumentation for hookd.
//
// # Overview
//
// This package implements distributed tracing and metrics collection using the
// OpenTelemetry Go SDK. It exports telemetry data to an OTEL Collector over
// OTLP (gRPC or HTTP/protobuf).
//
// # Usage
//
// Create telemetry instance:
//
//	cfg := telemetry.NewDefaultConfig()
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
// Use tracer and meter:
//
//	tracer := tel.Tracer("hookd.orchestrator")
//	ctx, span := tracer.Start(ctx, "ExecutePhase")
//	defer span.End()
//
//	meter := tel.Meter("hookd.orchestrator")
//	counter, _ := meter.Int64Counter("hook.executed.total")
//	counter.Add(ctx, 1)
//
// # Configuration
//
//	observability:
//	  enable_telemetry: true
//	  otlp_endpoint: "localhost:4317"
//	  protocol: "grpc"
//	  service_name: "hookd"
//	  metric_interval: "60s"
//
// # Error Handling
//
// Telemetry failures never fail a hook run. If telemetry cannot be
// initialized, the instance degrades gracefully and returns no-op providers.
// Hook runs are short-lived, so callers should ForceFlush before exit.
//
// # Testing
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	_, span := tracer.Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
