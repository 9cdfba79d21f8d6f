package geocoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_cache_hits_total",
		Help: "Reverse geocode lookups served from the address cache.",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_requests_total",
		Help: "Outbound reverse geocode requests grouped by outcome.",
	}, []string{"result"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_retries_total",
		Help: "Reverse geocode retries grouped by reason.",
	}, []string{"reason"})

	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_fallbacks_total",
		Help: "Lookups that fell back to raw coordinates.",
	})
)
