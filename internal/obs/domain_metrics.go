package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts checkout quotes by outcome (ready, disabled, error).
	QuoteTotal *prometheus.CounterVec
	// QuoteDisabledReasons counts the reasons a computed quote could not proceed to payment.
	QuoteDisabledReasons *prometheus.CounterVec
	// RateLookupTotal counts shipping rate table lookups by source and result.
	RateLookupTotal *prometheus.CounterVec
	// StaleResponsesTotal counts async lookup results dropped because a newer request superseded them.
	StaleResponsesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers checkout-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quotes_total",
			Help:      "Count of checkout quotes by outcome.",
		}, []string{"result"})
		QuoteDisabledReasons = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_disabled_reasons_total",
			Help:      "Count of reasons attached to disabled checkout quotes.",
		}, []string{"reason"})
		RateLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookup_total",
			Help:      "Count of shipping rate table lookups by source and result.",
		}, []string{"source", "result"})
		StaleResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Number of async lookup results discarded as superseded.",
		}, []string{"lookup"})

		QuoteTotal = registerOrReuse(reg, QuoteTotal)
		QuoteDisabledReasons = registerOrReuse(reg, QuoteDisabledReasons)
		RateLookupTotal = registerOrReuse(reg, RateLookupTotal)
		StaleResponsesTotal = registerOrReuse(reg, StaleResponsesTotal)
	})
}

// ObserveRateLookup records a rate table lookup when domain metrics are registered.
func ObserveRateLookup(source, result string) {
	if RateLookupTotal != nil {
		RateLookupTotal.WithLabelValues(source, result).Inc()
	}
}

// ObserveStaleResponse records a discarded async lookup result.
func ObserveStaleResponse(lookup string) {
	if StaleResponsesTotal != nil {
		StaleResponsesTotal.WithLabelValues(lookup).Inc()
	}
}

// ObserveQuote records a computed quote outcome and the reasons it was disabled.
func ObserveQuote(result string, reasons []string) {
	if QuoteTotal != nil {
		QuoteTotal.WithLabelValues(result).Inc()
	}
	if QuoteDisabledReasons == nil {
		return
	}
	for _, reason := range reasons {
		QuoteDisabledReasons.WithLabelValues(reason).Inc()
	}
}
