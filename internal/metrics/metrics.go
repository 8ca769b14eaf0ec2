// Package metrics holds the Prometheus collectors of the mail relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailrelay_deliveries_total",
		Help: "Total number of delivery attempts by provider and result",
	}, []string{"provider", "result"})
	DeliveryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailrelay_delivery_duration_seconds",
		Help:    "Time spent handing a message to the provider",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})
	// APIErrors is keyed by the error code of the JSON envelope.
	APIErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailrelay_api_errors_total",
		Help: "Total number of error responses from the send-email endpoint",
	}, []string{"code"})
)

func init() {
	prometheus.MustRegister(Deliveries)
	prometheus.MustRegister(DeliveryDuration)
	prometheus.MustRegister(APIErrors)
}

// ObserveDelivery records the outcome and duration of one provider call.
func ObserveDelivery(provider string, start time.Time, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	Deliveries.WithLabelValues(provider, result).Inc()
	DeliveryDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// Handler returns an http.Handler exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
