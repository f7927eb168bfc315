package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PointsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forestguard_path_points_appended_total",
		Help: "Location points written to path documents",
	})

	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forestguard_path_store_write_failures_total",
		Help: "Location points dropped because the store write failed",
	})

	Samples = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forestguard_location_samples_total",
		Help: "Sampling cycles by outcome",
	}, []string{"result"})

	SubscriptionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forestguard_path_subscription_refreshes_total",
		Help: "Path set recomputations delivered to subscribers",
	}, []string{"result"})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forestguard_path_subscriptions_active",
		Help: "Open path subscriptions",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forestguard_stream_clients",
		Help: "Clients registered on the change feed hub",
	})
)

// RegisterRoutes exposes the default registry.
func RegisterRoutes(r fiber.Router) {
	r.Get("/", adaptor.HTTPHandler(promhttp.Handler()))
}
