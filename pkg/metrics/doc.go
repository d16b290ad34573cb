/*
Package metrics provides Prometheus metrics collection and exposition for
the storage engine.

All metrics register against the default registry at package init and are
exposed via Handler for scraping. The instrumented surfaces are:

  - Markers: current block-number highwater mark per subsystem
    (header, body, state, class, compiled_class, event, base_layer).
  - KV engine: open read transactions, writer-lock occupancy, commit
    latency.
  - File store: bytes appended per blob file.
  - Operations: append and revert latency histograms per subsystem,
    revert counts, time-indexed state-read latency, event-scan counts.

Collector polls a MarkerSource on an interval so marker gauges stay
current on idle nodes. The health endpoints (/health, /ready, /live)
report component status for the kv engine and the append-only file
store.
*/
package metrics
