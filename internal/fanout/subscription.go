package fanout

import (
	"sync"
	"sync/atomic"
	"time"
)

// Subscription is one live sink for a journey's events. Events is never
// closed; Done is closed when the subscription is removed.
type Subscription struct {
	id        string
	journeyID string
	events    chan Event
	done      chan struct{}

	once   sync.Once
	reason atomic.Value // Reason
	active atomic.Int64 // unix nanos of the last delivery
}

func newSubscription(journeyID, id string, buffer int, now time.Time) *Subscription {
	s := &Subscription{
		id:        id,
		journeyID: journeyID,
		events:    make(chan Event, buffer),
		done:      make(chan struct{}),
	}
	s.active.Store(now.UnixNano())
	return s
}

func (s *Subscription) ID() string            { return s.id }
func (s *Subscription) JourneyID() string     { return s.journeyID }
func (s *Subscription) Events() <-chan Event  { return s.events }
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Reason returns why the subscription ended, or "" while it is live.
func (s *Subscription) Reason() Reason {
	r, _ := s.reason.Load().(Reason)
	return r
}

func (s *Subscription) touch(now time.Time) { s.active.Store(now.UnixNano()) }

func (s *Subscription) lastActive() time.Time { return time.Unix(0, s.active.Load()) }

// close reports whether this call ended the subscription.
func (s *Subscription) close(reason Reason) bool {
	closed := false
	s.once.Do(func() {
		s.reason.Store(reason)
		close(s.done)
		closed = true
	})
	return closed
}
