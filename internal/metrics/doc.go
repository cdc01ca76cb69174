// Package metrics provides compile and batch observability for texbuilder.
//
// # Design
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	orch := compile.NewOrchestrator(cfg.Compile, compiler,
//	    compile.WithRecorder(metrics.NoopRecorder{}))
//
// # Activation
//
// When a textfile path is configured the CLI swaps in a PrometheusRecorder
// backed by its own registry and writes the registry with WriteTextfile at the
// end of each batch, for collection by the node exporter textfile collector.
package metrics
