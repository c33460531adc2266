package common

import (
	"connectwork/src/db"
	"connectwork/src/lib"
	"connectwork/src/lib/mpesa"
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const sweepBatch = 50

// Sweeper settles transactions that stayed pending past their poll window,
// e.g. a poll that timed out and a callback that never arrived. It also
// re-applies outcomes that were stored before the matching payment existed.
type Sweeper struct {
	Store      db.Store
	Checker    StatusChecker
	Reconciler mpesa.Reconciler
	Sessions   *Sessions
	Age        time.Duration
}

// Sweep queries the provider once for every stale pending transaction, then
// settles payments left behind by an early outcome. It returns how many
// records were handled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.Store.ListStalePending(ctx, time.Now().Add(-s.Age), sweepBatch)
	if err != nil {
		log.Printf("[sweeper] Error listing pending transactions: %s\n", err.Error())
		return 0, err
	}
	checked := 0
	for _, txn := range stale {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		if s.Sessions != nil {
			if sess, ok := s.Sessions.Get(txn.CheckoutRequestID); ok && !sess.Finished() {
				continue
			}
		}
		res, err := s.Checker.CheckTransactionStatus(ctx, txn.CheckoutRequestID)
		checked++
		if err != nil {
			log.Printf("[sweeper] %s: %s\n", txn.CheckoutRequestID, err.Error())
			continue
		}
		log.Printf("[sweeper] %s: %s\n", txn.CheckoutRequestID, res.Outcome)
	}
	settled, err := s.settleOrphans(ctx)
	checked += settled
	if err != nil {
		return checked, err
	}
	if s.Sessions != nil {
		if n := s.Sessions.Prune(s.Age); n > 0 {
			log.Printf("[sweeper] pruned %d poll sessions\n", n)
		}
	}
	return checked, nil
}

// settleOrphans replays the stored outcome onto payments that are still pending
// although their mpesa transaction is terminal.
func (s *Sweeper) settleOrphans(ctx context.Context) (int, error) {
	if s.Reconciler == nil {
		return 0, nil
	}
	orphans, err := s.Store.ListSettledPendingPayments(ctx, sweepBatch)
	if err != nil {
		log.Printf("[sweeper] Error listing unsettled payments: %s\n", err.Error())
		return 0, err
	}
	settled := 0
	for _, p := range orphans {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		txn, err := s.Store.FindMpesaTransaction(ctx, p.CheckoutRequestID)
		if err != nil {
			log.Printf("[sweeper] %s: %s\n", p.CheckoutRequestID, err.Error())
			continue
		}
		if _, err := s.Reconciler.Reconcile(ctx, mpesa.Reconciliation{
			CheckoutRequestID: txn.CheckoutRequestID,
			Status:            txn.Status,
			TransactionID:     deref(txn.ReceiptNumber),
			ResultCode:        deref(txn.ResultCode),
			ResultDesc:        deref(txn.ResultDesc),
			Source:            "sweeper",
		}); err != nil {
			log.Printf("[sweeper] %s: %s\n", p.CheckoutRequestID, err.Error())
			continue
		}
		settled++
		log.Printf("[sweeper] %s: payment settled as %s\n", p.CheckoutRequestID, txn.Status)
	}
	return settled, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.Sweep(ctx)
}

// Schedule registers the sweep on sched every interval, plus one run shortly after start.
func (s *Sweeper) Schedule(sched gocron.Scheduler, interval time.Duration) error {
	if _, err := lib.CreateOneTimeJob(sched, "mpesa-sweep-startup", time.Now().Add(10*time.Second), s.run); err != nil {
		return err
	}
	_, err := lib.CreateDurationJob(sched, "mpesa-sweep", interval, s.run)
	return err
}
