package checkout

import "errors"

var (
	ErrInProgress             = errors.New("checkout: a payment is already in progress")
	ErrInvalidStateTransition = errors.New("checkout: invalid state transition")
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
)

// State implements the state pattern for a session's checkout lifecycle:
// Idle -> Processing -> Idle.
type State interface {
	Status() Status
	OnBegin(a *Attempt) (State, error)
	OnSucceeded(a *Attempt, paymentID string) (State, error)
	OnFailed(a *Attempt, message string) (State, error)
}

type idleState struct{}

func (idleState) Status() Status { return StatusIdle }

func (idleState) OnBegin(a *Attempt) (State, error) {
	a.LastError = ""
	return processingState{}, nil
}

func (idleState) OnSucceeded(*Attempt, string) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (idleState) OnFailed(*Attempt, string) (State, error) {
	return nil, ErrInvalidStateTransition
}

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnBegin(*Attempt) (State, error) {
	return nil, ErrInProgress
}

func (processingState) OnSucceeded(a *Attempt, paymentID string) (State, error) {
	a.LastError = ""
	a.LastPaymentID = paymentID
	return idleState{}, nil
}

func (processingState) OnFailed(a *Attempt, message string) (State, error) {
	a.LastError = message
	return idleState{}, nil
}
