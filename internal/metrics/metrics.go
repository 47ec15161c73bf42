package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "klemz",
			Name:      "booking_created_total",
			Help:      "Count of booking creations by status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klemz",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by users.",
		},
	)

	slotConflictRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "klemz",
			Name:      "slot_conflict_rejected_total",
			Help:      "Count of slot selections rejected by the local conflict pre-check.",
		},
	)

	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "klemz",
			Name:      "gateway_requests_total",
			Help:      "Count of appointment service requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, slotConflictRejected, gatewayRequests)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncSlotConflictRejected() {
	slotConflictRejected.Inc()
}

func IncGatewayRequest(endpoint, outcome string) {
	gatewayRequests.WithLabelValues(endpoint, outcome).Inc()
}
