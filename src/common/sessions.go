package common

import (
	"connectwork/src/lib/mpesa"
	"connectwork/src/types"
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Session is a snapshot of one background poll.
type Session struct {
	CheckoutRequestID string          `json:"checkoutRequestId"`
	State             types.PollState `json:"state"`
	Attempts          int             `json:"attempts"`
	Message           string          `json:"message,omitempty"`
	StartedAt         time.Time       `json:"startedAt"`
	FinishedAt        *time.Time      `json:"finishedAt,omitempty"`
	Result            *PollResult     `json:"result,omitempty"`
}

type session struct {
	Session
	cancel context.CancelFunc
	done   chan struct{}
}

// Sessions runs one poller per checkout, detached from the request that started it.
type Sessions struct {
	poller *Poller
	base   context.Context
	stop   context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func NewSessions(poller *Poller) *Sessions {
	base, stop := context.WithCancel(context.Background())
	return &Sessions{
		poller:   poller,
		base:     base,
		stop:     stop,
		sessions: map[string]*session{},
	}
}

// Start begins polling for the checkout unless a session for it is already running.
func (s *Sessions) Start(checkoutRequestID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[checkoutRequestID]; ok && cur.State == types.POLL_RUNNING {
		return cur.Session
	}

	ctx, cancel := context.WithCancel(s.base)
	sess := &session{
		Session: Session{
			CheckoutRequestID: checkoutRequestID,
			State:             types.POLL_RUNNING,
			StartedAt:         time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.sessions[checkoutRequestID] = sess

	s.wg.Add(1)
	go s.run(ctx, sess)
	return sess.Session
}

func (s *Sessions) run(ctx context.Context, sess *session) {
	defer s.wg.Done()
	defer close(sess.done)
	defer sess.cancel()

	p := *s.poller
	p.OnAttempt = func(attempt int, res *mpesa.StatusResult, err error) {
		s.mu.Lock()
		sess.Attempts = attempt
		if res != nil {
			sess.Message = res.Message
		}
		s.mu.Unlock()
	}
	res, err := p.Await(ctx, sess.CheckoutRequestID)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess.FinishedAt = &now
	switch {
	case err == nil:
		sess.Result = res
		sess.Message = res.Result.Message
		if res.Status == types.PAYMENT_COMPLETED {
			sess.State = types.POLL_COMPLETED
		} else {
			sess.State = types.POLL_FAILED
		}
	case types.IsTimeout(err):
		sess.State = types.POLL_TIMEOUT
		sess.Message = err.Error()
	case errors.Is(err, context.Canceled):
		sess.State = types.POLL_CANCELED
		sess.Message = "Polling canceled"
	default:
		sess.State = types.POLL_FAILED
		sess.Message = err.Error()
	}
	log.Printf("[sessions] %s finished: %s after %d attempts\n", sess.CheckoutRequestID, sess.State, sess.Attempts)
}

func (s *Sessions) Get(checkoutRequestID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[checkoutRequestID]
	if !ok {
		return Session{}, false
	}
	return sess.Session, true
}

// Wait blocks until the session finishes or ctx is done.
func (s *Sessions) Wait(ctx context.Context, checkoutRequestID string) (Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[checkoutRequestID]
	s.mu.Unlock()
	if !ok {
		return Session{}, &types.NotFoundError{Resource: "poll session", Key: checkoutRequestID}
	}
	select {
	case <-sess.done:
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
	got, _ := s.Get(checkoutRequestID)
	return got, nil
}

// Cancel stops a running session. The transaction is left as it is.
func (s *Sessions) Cancel(checkoutRequestID string) (Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[checkoutRequestID]
	s.mu.Unlock()
	if !ok {
		return Session{}, &types.NotFoundError{Resource: "poll session", Key: checkoutRequestID}
	}
	sess.cancel()
	<-sess.done
	got, _ := s.Get(checkoutRequestID)
	return got, nil
}

// Prune drops finished sessions older than age and returns how many were removed.
func (s *Sessions) Prune(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.FinishedAt != nil && sess.FinishedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// CancelAll stops every running session and waits for them to exit.
func (s *Sessions) CancelAll() {
	s.stop()
	s.wg.Wait()
}

func (s Session) Finished() bool {
	return s.State != types.POLL_RUNNING
}
