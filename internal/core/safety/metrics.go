package safety

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// checksTotal 檢查次數，依種類與結果
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allergen_guard_checks_total",
		Help: "Total safety checks by kind and outcome",
	}, []string{"kind", "outcome"})

	// flagsTotal 命中次數，依原因
	flagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allergen_guard_flags_total",
		Help: "Total allergen flags by reason",
	}, []string{"reason"})

	providerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allergen_guard_provider_errors_total",
		Help: "Provider failures surfaced to callers",
	}, []string{"kind"})
)

func observe(kind string, r *Result) {
	if r == nil {
		return
	}
	outcome := "not_found"
	switch {
	case r.Code == codeEmptyInput:
		outcome = "empty_input"
	case r.Safe != nil && *r.Safe:
		outcome = "safe"
	case r.Safe != nil:
		outcome = "unsafe"
	}
	checksTotal.WithLabelValues(kind, outcome).Inc()
	for _, f := range r.Allergens {
		flagsTotal.WithLabelValues(string(f.Reason)).Inc()
	}
}
