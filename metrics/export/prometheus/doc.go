// Package prometheus renders ledgerAuth metrics in the Prometheus text
// exposition format.
//
// [Exporter] implements http.Handler and is mounted at /metrics by the HTTP
// surface. Counter names are prefixed ledgerauth_ and suffixed _total; the
// single histogram is ledgerauth_verify_latency_seconds. No global registry
// is touched.
package prometheus
