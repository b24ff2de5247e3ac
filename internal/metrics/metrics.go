package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scans counts scan submissions by outcome: recorded, duplicate, rejected.
var Scans = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qrattend",
	Name:      "scans_total",
	Help:      "Scan submissions by outcome.",
}, []string{"outcome"})

// Requests counts HTTP requests by method and status class.
var Requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qrattend",
	Name:      "http_requests_total",
	Help:      "HTTP requests by method and status.",
}, []string{"method", "status"})
