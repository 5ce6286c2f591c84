package checkout

import "time"

// Attempt tracks the checkout state of one session. It is not safe for concurrent use;
// callers serialize access.
type Attempt struct {
	SessionID     string
	LastError     string
	LastPaymentID string
	UpdatedAt     time.Time

	state State
}

func NewAttempt(sessionID string) *Attempt {
	return &Attempt{
		SessionID: sessionID,
		UpdatedAt: time.Now().UTC(),
		state:     idleState{},
	}
}

func (a *Attempt) Status() Status {
	if a.state == nil {
		return StatusIdle
	}
	return a.state.Status()
}

// Begin moves Idle to Processing and clears the previous error. It fails with
// ErrInProgress while a payment is outstanding.
func (a *Attempt) Begin() error {
	return a.transition(func(s State) (State, error) { return s.OnBegin(a) })
}

func (a *Attempt) Succeed(paymentID string) error {
	return a.transition(func(s State) (State, error) { return s.OnSucceeded(a, paymentID) })
}

func (a *Attempt) Fail(message string) error {
	return a.transition(func(s State) (State, error) { return s.OnFailed(a, message) })
}

func (a *Attempt) transition(fn func(State) (State, error)) error {
	if a.state == nil {
		a.state = idleState{}
	}
	next, err := fn(a.state)
	if err != nil {
		return err
	}
	a.state = next
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Snapshot is a copy safe to hand out of the lock.
func (a *Attempt) Snapshot() Attempt {
	cp := *a
	return cp
}
