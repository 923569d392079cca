package feedback

import "github.com/prometheus/client_golang/prometheus"

// Operation outcomes recorded in feedback_operations_total.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_operations_total",
		Help: "Feedback operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	cipherFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_cipher_failures_total",
		Help: "Stored comments that could not be decrypted.",
	})
)

func init() {
	prometheus.MustRegister(operationsTotal, cipherFailuresTotal)
}
