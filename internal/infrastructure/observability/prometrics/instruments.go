package prometrics

import (
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Instruments registers every metric the service emits. Label keys must match the
// labels passed at the call sites or the Prometheus vectors panic.
func Instruments(r Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
			"Total number of HTTP requests served.", "method", "route", "status"),
		observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
			"Total number of outbound calls to dependencies.", "peer", "endpoint", "outcome"),
		observability.MCheckoutOutcomes: r.Counter(string(observability.MCheckoutOutcomes),
			"Checkout attempts by payment outcome.", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", prometheus.DefBuckets, "method", "route", "status"),
		observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
			"Duration of outbound calls in seconds.", prometheus.DefBuckets, "peer", "endpoint"),
	}
	return counters, histograms
}
