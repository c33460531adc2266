package types

import "time"

const PAYMENT_EVENTS_TOPIC = "PaymentTransactionUpdates"

// PaymentEvent is emitted once per applied transition out of pending.
type PaymentEvent struct {
	Type              string        `json:"type"`
	CheckoutRequestID string        `json:"checkout_request_id"`
	PaymentID         string        `json:"payment_id,omitempty"`
	JobID             string        `json:"job_id,omitempty"`
	CustomerID        string        `json:"customer_id,omitempty"`
	WorkerID          string        `json:"worker_id,omitempty"`
	Status            PaymentStatus `json:"status"`
	TransactionID     string        `json:"transaction_id,omitempty"`
	ResultCode        string        `json:"result_code,omitempty"`
	ResultDesc        string        `json:"result_desc,omitempty"`
	Source            string        `json:"source"`
	OccurredAt        time.Time     `json:"occurred_at"`
}
