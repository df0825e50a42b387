package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(flagStreamClients, flagBroadcasts, flagStreamDrops, premiumExpired)
}

var (
	flagStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feature_flag_stream_clients",
		Help: "Connected feature-flag SSE subscribers on this instance.",
	})

	flagBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feature_flag_broadcasts_total",
		Help: "Flag snapshots pushed to local subscribers.",
	})

	flagStreamDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feature_flag_stream_drops_total",
		Help: "Subscribers removed after a failed write.",
	})

	premiumExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "premium_expired_total",
		Help: "Users whose premium entitlement lapsed.",
	})
)

func SetFlagStreamClients(n int) { flagStreamClients.Set(float64(n)) }
func IncFlagBroadcast()          { flagBroadcasts.Inc() }
func AddFlagStreamDrops(n int)   { flagStreamDrops.Add(float64(n)) }
func AddPremiumExpired(n int)    { premiumExpired.Add(float64(n)) }
