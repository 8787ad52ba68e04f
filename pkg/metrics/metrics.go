// Package metrics is the reference point for the proxy's Prometheus metrics.
// Metrics are declared with promauto next to the code that records them
// (client, ratelimit, pagination, stages, proxy) to avoid import cycles;
// this package exposes the registry they land in and the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every promauto metric in this module uses.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics scrape handler for Registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Upstream client (pkg/client):
//   - crm_requests_total{object, status} (Counter): outbound calls by CRM object and HTTP status
//   - crm_request_duration_seconds{object} (Histogram): outbound call latency
//   - crm_errors_total{class} (Counter): failures by class (client, server, rate_limit, network)
//
// Throttle (pkg/ratelimit):
//   - crm_throttle_wait_seconds{mode} (Histogram): time spent waiting before an outbound call
//   - crm_throttle_errors_total{mode} (Counter): throttle backend failures
//
// Aggregation (pkg/pagination):
//   - crm_pagination_pages{object} (Histogram): pages fetched per aggregation
//   - crm_pagination_records_total{object} (Counter): records returned by successful aggregations
//   - crm_pagination_aborts_total{object} (Counter): aggregations aborted by an error
//
// Stage counts (pkg/stages):
//   - crm_stage_count{stage} (Gauge): last observed total per lifecycle stage
//
// Proxy (pkg/proxy):
//   - crm_proxy_requests_total{route, status} (Counter): proxied requests by route and response status
//   - crm_proxy_request_duration_seconds{route} (Histogram): end-to-end handler latency
//
// Example Prometheus Queries:
//
//   # Upstream error rate
//   rate(crm_errors_total[5m])
//
//   # Average pages per deals aggregation
//   rate(crm_pagination_pages_sum{object="deals"}[1h]) / rate(crm_pagination_pages_count{object="deals"}[1h])
//
//   # P95 proxy latency per route
//   histogram_quantile(0.95, rate(crm_proxy_request_duration_seconds_bucket[5m]))
