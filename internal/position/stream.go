// Package position delivers the user's location as a cancellable stream.
package position

import (
	"context"
	"errors"
	"sync"
	"time"

	"chizu/campus-client/internal/model"
)

// ErrNoFix is returned when a subscription ends before producing a position.
var ErrNoFix = errors.New("no position fix")

// Position is one location fix.
type Position struct {
	At        model.LatLng `json:"at"`
	Accuracy  float64      `json:"accuracy,omitempty"` // meters
	Timestamp time.Time    `json:"timestamp"`
}

// Source starts position watches.
type Source interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Subscription is one watch. Updates are delivered until Unsubscribe is
// called or the subscribing context ends; a finished subscription cannot be
// resumed. Slow consumers only ever see the newest fix.
type Subscription struct {
	mu     sync.Mutex
	ch     chan Position
	closed bool
	done   chan struct{}
	stop   func()
}

// NewSubscription creates a subscription bound to ctx. stop runs once when
// the subscription ends and should release whatever feeds it.
func NewSubscription(ctx context.Context, stop func()) *Subscription {
	s := &Subscription{
		ch:   make(chan Position, 1),
		done: make(chan struct{}),
		stop: stop,
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()
	return s
}

// Updates returns the update channel. It is closed when the subscription ends.
func (s *Subscription) Updates() <-chan Position {
	return s.ch
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Deliver publishes a fix, replacing any fix the consumer has not read yet.
// It reports false once the subscription has ended.
func (s *Subscription) Deliver(p Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- p:
			return true
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Unsubscribe ends the subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
	s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
}

// Once performs a one-shot position request.
func Once(ctx context.Context, src Source) (Position, error) {
	sub, err := src.Subscribe(ctx)
	if err != nil {
		return Position{}, err
	}
	defer sub.Unsubscribe()

	select {
	case p, ok := <-sub.Updates():
		if !ok {
			return Position{}, ErrNoFix
		}
		return p, nil
	case <-ctx.Done():
		return Position{}, ctx.Err()
	}
}

// Static is a Source that reports a fixed position once per subscription.
type Static struct {
	At       model.LatLng
	Accuracy float64
	Now      func() time.Time
}

// Subscribe delivers the fixed position and keeps the watch open.
func (s Static) Subscribe(ctx context.Context) (*Subscription, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	sub := NewSubscription(ctx, nil)
	sub.Deliver(Position{At: s.At, Accuracy: s.Accuracy, Timestamp: now()})
	return sub, nil
}

// Unavailable is a Source for environments with no position service.
type Unavailable struct{}

// Subscribe returns a watch that never produces a fix.
func (Unavailable) Subscribe(ctx context.Context) (*Subscription, error) {
	return NewSubscription(ctx, nil), nil
}
