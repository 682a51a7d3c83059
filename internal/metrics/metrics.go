package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "viewbot"

// Metrics holds the bot's Prometheus collectors
type Metrics struct {
	Signups         prometheus.Counter
	Referrals       prometheus.Counter
	Orders          *prometheus.CounterVec
	OrderLatency    prometheus.Histogram
	PointsWithdrawn prometheus.Counter
	Redemptions     *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	PersistErrors   *prometheus.CounterVec

	TotalUsers   prometheus.Gauge
	TotalBanned  prometheus.Gauge
	TotalBalance prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in
// tests so instances do not collide.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Signups: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Accounts created",
		}),
		Referrals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_total",
			Help:      "Referral bonuses granted",
		}),
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Panel orders by result",
		}, []string{"result"}),
		OrderLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_latency_seconds",
			Help:      "Panel order call duration",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		PointsWithdrawn: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_withdrawn_total",
			Help:      "Points debited for accepted orders",
		}),
		Redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Code redemption attempts by result",
		}, []string{"result"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Broadcast deliveries by result",
		}, []string{"result"}),
		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Operations aborted by a failed snapshot write",
		}, []string{"operation"}),
		TotalUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Known accounts",
		}),
		TotalBanned: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "banned_users",
			Help:      "Banned user ids",
		}),
		TotalBalance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "points_outstanding",
			Help:      "Sum of all balances",
		}),
		gatherer: reg,
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
