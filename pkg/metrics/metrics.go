package metrics

import "time"

// Event names recorded by the payment flow
const (
	EventPaymentRequired  = "payment_required"
	EventPaymentSettled   = "payment_settled"
	EventPaymentUnsettled = "payment_unsettled"
	EventPaymentFailed    = "payment_failed"
	OperationExecute      = "execute"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
