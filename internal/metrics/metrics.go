package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersSeen         prometheus.Counter
	Deliveries         prometheus.Counter
	DeliveryFailures   prometheus.Counter
	AllocationFailures *prometheus.CounterVec
	ReservationsReused prometheus.Counter
	PollErrors         prometheus.Counter
	TickDuration       prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	ordersSeen := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfill_orders_seen_total"})
	deliveries := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfill_deliveries_total"})
	deliveryFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfill_delivery_failures_total"})
	allocationFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fulfill_allocation_failures_total"},
		[]string{"reason"},
	)
	reservationsReused := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfill_reservations_reused_total"})
	pollErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfill_poll_errors_total"})
	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfill_tick_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(ordersSeen, deliveries, deliveryFailures, allocationFailures,
		reservationsReused, pollErrors, tickDuration)

	return &Registry{
		reg:                r,
		OrdersSeen:         ordersSeen,
		Deliveries:         deliveries,
		DeliveryFailures:   deliveryFailures,
		AllocationFailures: allocationFailures,
		ReservationsReused: reservationsReused,
		PollErrors:         pollErrors,
		TickDuration:       tickDuration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
