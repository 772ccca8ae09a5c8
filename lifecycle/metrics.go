package lifecycle

import (
	"errors"

	"civicsync/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "civicsync",
	Name:      "issue_transitions_total",
	Help:      "Issue lifecycle operations by operation and outcome.",
}, []string{"operation", "outcome"})

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, models.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, models.ErrDuplicateReward):
		return "duplicate_reward"
	case errors.Is(err, models.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func observe(operation string, err error) {
	transitions.WithLabelValues(operation, outcome(err)).Inc()
}
