// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces used to report link-check progress. It batches events on a
// background goroutine and fans them out to pluggable sinks such as Prometheus
// metrics or the audit log.
package progress
