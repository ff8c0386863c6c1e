// Package circuitbreaker guards calls to the remote scheduling platform.
// Each remote operation (list, schedule, delete, ...) trips independently, so
// a broken delete endpoint does not take scheduling down with it.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type opState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks consecutive failures per operation and rejects calls
// while that operation's circuit is open. After the cooldown one probe call
// is let through; its outcome closes or re-opens the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*opState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*opState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether a call for op may proceed.
func (cb *CircuitBreaker) Allow(op string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[op]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// Probe already in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess closes the circuit for op.
func (cb *CircuitBreaker) RecordSuccess(op string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[op]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

// RecordFailure counts a failure for op and opens the circuit at the
// threshold.
func (cb *CircuitBreaker) RecordFailure(op string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[op]
	if !ok {
		s = &opState{}
		cb.states[op] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}
