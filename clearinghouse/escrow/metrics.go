package escrow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearinghouse_state_transitions_total",
		Help: "Count of committed contract state transitions by event type.",
	}, []string{"event_type"})
	duplicateOperationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearinghouse_duplicate_operations_total",
		Help: "Count of operations rejected by the idempotency guard.",
	})
)
