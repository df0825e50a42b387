package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PayUInitTotal,
		PayUCallbackTotal,
		PayUVerifyTotal,
		PremiumGrantsTotal,
	)
}

var (
	// result: ok|invalid_amount|missing_email|not_configured|error
	PayUInitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payu_init_total",
			Help: "Checkout forms signed, by result.",
		},
		[]string{"result"},
	)

	// result: granted|duplicate|not_granted|not_success|invalid_hash|missing_fields|not_configured|error
	PayUCallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payu_callback_total",
			Help: "Gateway callbacks handled, by outcome.",
		},
		[]string{"result"},
	)

	// result: valid|invalid|missing_fields|not_configured|rate_limited
	PayUVerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payu_verify_total",
			Help: "Read-only signature checks, by result.",
		},
		[]string{"result"},
	)

	PremiumGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_grants_total",
			Help: "Premium entitlements granted, by plan tag.",
		},
		[]string{"plan"},
	)
)

func IncPayUInit(result string)     { PayUInitTotal.WithLabelValues(norm(result)).Inc() }
func IncPayUCallback(result string) { PayUCallbackTotal.WithLabelValues(norm(result)).Inc() }
func IncPayUVerify(result string)   { PayUVerifyTotal.WithLabelValues(norm(result)).Inc() }
func IncPremiumGrant(plan string)   { PremiumGrantsTotal.WithLabelValues(norm(plan)).Inc() }
