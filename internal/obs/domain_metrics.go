package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingQuotesTotal counts Apply calls by outcome ("ok" or a rejection reason).
	PricingQuotesTotal *prometheus.CounterVec
	// PricingDiscountsApplied counts discount multipliers applied to cart lines.
	PricingDiscountsApplied *prometheus.CounterVec
	// CatalogCacheTotal counts catalog cache lookups by kind and result.
	CatalogCacheTotal *prometheus.CounterVec
	// AuditEventsTotal counts audit task handling outcomes.
	AuditEventsTotal *prometheus.CounterVec
	// AuditPublishTotal counts audit task enqueue outcomes.
	AuditPublishTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of discount application requests by outcome.",
		}, []string{"result"})
		PricingDiscountsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_discounts_applied_total",
			Help:      "Count of discounts applied to cart lines by scope.",
		}, []string{"scope"})
		CatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Count of catalog cache lookups by kind and result.",
		}, []string{"kind", "result"})
		AuditEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Count of processed pricing audit tasks by outcome.",
		}, []string{"result"})
		AuditPublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_publish_total",
			Help:      "Count of pricing audit task enqueue attempts by outcome.",
		}, []string{"result"})

		for _, ref := range []**prometheus.CounterVec{
			&PricingQuotesTotal,
			&PricingDiscountsApplied,
			&CatalogCacheTotal,
			&AuditEventsTotal,
			&AuditPublishTotal,
		} {
			ref := ref
			mustRegisterCollector(reg, *ref, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*ref = v
				}
			})
		}
	})
}

// ObservePricingQuote records the outcome of one Apply call.
func ObservePricingQuote(result string) {
	if PricingQuotesTotal != nil {
		PricingQuotesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveDiscountApplied records one applied discount of the given scope.
func ObserveDiscountApplied(scope string) {
	if PricingDiscountsApplied != nil {
		PricingDiscountsApplied.WithLabelValues(scope).Inc()
	}
}

// ObserveCatalogCache records a catalog cache hit, miss or error.
func ObserveCatalogCache(kind, result string) {
	if CatalogCacheTotal != nil {
		CatalogCacheTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveAuditEvent records the outcome of handling one audit task.
func ObserveAuditEvent(result string) {
	if AuditEventsTotal != nil {
		AuditEventsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveAuditPublish records the outcome of enqueueing one audit task.
func ObserveAuditPublish(result string) {
	if AuditPublishTotal != nil {
		AuditPublishTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
