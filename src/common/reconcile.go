package common

import (
	"connectwork/src/db"
	"connectwork/src/lib/mpesa"
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Reconciler applies terminal provider outcomes to the store. Status queries,
// callbacks and the sweeper all go through it, so whichever arrives first wins
// and the rest are no-ops.
type Reconciler struct {
	store     db.Store
	publisher Publisher
	strict    bool
}

var _ mpesa.Reconciler = (*Reconciler)(nil)

// NewReconciler returns a reconciler. With strict set, store failures are returned
// to the caller; otherwise they are logged and the call reports success.
func NewReconciler(store db.Store, publisher Publisher, strict bool) *Reconciler {
	return &Reconciler{store: store, publisher: publisher, strict: strict}
}

func (r *Reconciler) Reconcile(ctx context.Context, in mpesa.Reconciliation) (*mpesa.ReconcileResult, error) {
	if in.CheckoutRequestID == "" {
		err := errors.New("reconcile: checkout request id is required")
		return &mpesa.ReconcileResult{Success: false, Message: err.Error()}, err
	}
	if !in.Status.Terminal() {
		err := fmt.Errorf("reconcile: %q is not a terminal status", in.Status)
		return &mpesa.ReconcileResult{Success: false, Message: err.Error()}, err
	}

	t := db.Transition{
		Status:        in.Status,
		TransactionID: in.TransactionID,
		ResultCode:    in.ResultCode,
		ResultDesc:    in.ResultDesc,
	}

	var (
		payment  *models.Payment
		applied  bool
		notFound error
	)
	err := r.store.Transaction(ctx, func(tx db.Store) error {
		if _, err := tx.TransitionMpesaTransaction(ctx, in.CheckoutRequestID, t); err != nil {
			return err
		}
		p, err := tx.FindPaymentByCheckoutID(ctx, in.CheckoutRequestID)
		if types.IsNotFound(err) {
			// Keep the transaction update; there is just nothing else to move.
			notFound = err
			return nil
		}
		if err != nil {
			return err
		}
		payment = p

		applied, err = tx.TransitionPayment(ctx, p.ID, t)
		if err != nil {
			return err
		}
		if !applied || in.Status != types.PAYMENT_COMPLETED {
			return nil
		}
		if err := tx.MarkJobPaid(ctx, p.JobID); err != nil {
			return err
		}
		return tx.CompleteApplication(ctx, p.JobID, p.WorkerID)
	})
	if err != nil {
		log.Printf("[reconcile] %s -> %s (%s): %s\n", in.CheckoutRequestID, in.Status, in.Source, err.Error())
		if r.strict {
			return &mpesa.ReconcileResult{Success: false, Message: err.Error()}, err
		}
		return &mpesa.ReconcileResult{Success: true, Message: "Outcome received, bookkeeping deferred"}, nil
	}
	if notFound != nil {
		log.Printf("[reconcile] %s: no payment for checkout\n", in.CheckoutRequestID)
		return &mpesa.ReconcileResult{Success: false, Message: notFound.Error()}, notFound
	}
	if !applied {
		log.Printf("[reconcile] %s already %s, ignoring %s from %s\n", in.CheckoutRequestID, payment.Status, in.Status, in.Source)
		return &mpesa.ReconcileResult{Success: true, Message: "Payment already reconciled"}, nil
	}

	log.Printf("[reconcile] %s -> %s (%s)\n", in.CheckoutRequestID, in.Status, in.Source)
	r.publish(ctx, payment, in)
	return &mpesa.ReconcileResult{
		Success: true,
		Message: fmt.Sprintf("Payment marked %s", in.Status),
		Applied: true,
	}, nil
}

func (r *Reconciler) publish(ctx context.Context, p *models.Payment, in mpesa.Reconciliation) {
	if r.publisher == nil {
		return
	}
	ev := newPaymentEvent(in.Status, in.CheckoutRequestID)
	ev.PaymentID = p.ID.String()
	ev.JobID = p.JobID.String()
	ev.CustomerID = p.CustomerID.String()
	ev.WorkerID = p.WorkerID.String()
	ev.TransactionID = in.TransactionID
	ev.ResultCode = in.ResultCode
	ev.ResultDesc = in.ResultDesc
	ev.Source = in.Source

	// Already committed, so detach from the caller.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pctx, ev); err != nil {
		log.Printf("[reconcile] %s: event delivery failed: %s\n", in.CheckoutRequestID, err.Error())
	}
}
