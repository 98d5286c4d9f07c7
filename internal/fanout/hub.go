// Package fanout delivers journey events to live subscribers and to the
// cross-service publish channel.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"journey-simulator/internal/publisher"
	"journey-simulator/internal/sim"
)

var ErrClosed = errors.New("fanout hub closed")

type Metrics interface {
	SetSubscribers(n int)
	SubscriberRemoved(reason string)
	PublishDropped()
}

type Options struct {
	// SendTimeout bounds how long one delivery may wait on a full buffer.
	SendTimeout time.Duration
	// IdleTimeout removes subscriptions that received nothing for that long.
	IdleTimeout time.Duration
	Buffer      int

	Publisher      publisher.Publisher
	PublishQueue   int
	PublishTimeout time.Duration

	Metrics Metrics
	Logger  *slog.Logger
}

// Hub owns the journey id -> subscribers mapping. It implements sim.Notifier.
type Hub struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	topics map[string]*topic
	closed bool

	subscribers atomic.Int64

	queueMu     sync.RWMutex
	queue       chan publisher.Message
	queueClosed bool

	stop chan struct{}
	wg   sync.WaitGroup
}

type topic struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

var _ sim.Notifier = (*Hub)(nil)

func NewHub(opts Options) *Hub {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 250 * time.Millisecond
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 32
	}
	if opts.PublishQueue <= 0 {
		opts.PublishQueue = 1024
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		opts:   opts,
		logger: opts.Logger,
		now:    time.Now,
		topics: make(map[string]*topic),
		queue:  make(chan publisher.Message, opts.PublishQueue),
		stop:   make(chan struct{}),
	}
}

// Start launches the idle janitor and, when a publisher is configured, the
// publish drainer.
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.janitor()
	}()
	if h.opts.Publisher != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.drain()
		}()
	}
}

// Subscribe registers a sink for journeyID. An empty subscriberID gets a
// random one; reusing an id replaces the earlier subscription.
func (h *Hub) Subscribe(journeyID, subscriberID string) (*Subscription, error) {
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}
	sub := newSubscription(journeyID, subscriberID, h.opts.Buffer, h.now())

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	t, ok := h.topics[journeyID]
	if !ok {
		t = &topic{subs: make(map[string]*Subscription)}
		h.topics[journeyID] = t
	}
	// topic lock taken under h.mu so a concurrent teardown cannot drop t in between
	t.mu.Lock()
	h.mu.Unlock()
	old := t.subs[subscriberID]
	t.subs[subscriberID] = sub
	t.mu.Unlock()

	if old != nil {
		old.close(ReasonReplaced)
		h.opts.Metrics.SubscriberRemoved(string(ReasonReplaced))
	} else {
		h.opts.Metrics.SetSubscribers(int(h.subscribers.Add(1)))
	}
	h.logger.Debug("subscriber added", "journey_id", journeyID, "subscriber_id", subscriberID)
	return sub, nil
}

// Unsubscribe removes sub if it is still registered.
func (h *Hub) Unsubscribe(sub *Subscription, reason Reason) {
	h.mu.RLock()
	t := h.topics[sub.journeyID]
	h.mu.RUnlock()
	if t != nil {
		t.mu.Lock()
		if t.subs[sub.id] != sub {
			t.mu.Unlock()
			sub.close(reason)
			return
		}
		delete(t.subs, sub.id)
		empty := len(t.subs) == 0
		t.mu.Unlock()
		if empty {
			h.dropTopicIfEmpty(sub.journeyID, t)
		}
		h.removed(sub, reason)
		return
	}
	sub.close(reason)
}

func (h *Hub) removed(sub *Subscription, reason Reason) {
	if !sub.close(reason) {
		return
	}
	h.opts.Metrics.SetSubscribers(int(h.subscribers.Add(-1)))
	h.opts.Metrics.SubscriberRemoved(string(reason))
	h.logger.Debug("subscriber removed", "journey_id", sub.journeyID, "subscriber_id", sub.id, "reason", reason)
}

func (h *Hub) dropTopicIfEmpty(journeyID string, t *topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[journeyID] != t {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) == 0 {
		delete(h.topics, journeyID)
	}
}

// SubscriberCount returns the live subscribers of journeyID.
func (h *Hub) SubscriberCount(journeyID string) int {
	h.mu.RLock()
	t := h.topics[journeyID]
	h.mu.RUnlock()
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (h *Hub) TotalSubscribers() int { return int(h.subscribers.Load()) }

func (h *Hub) PublishStarted(s sim.Snapshot) { h.publish(KindStarted, s) }
func (h *Hub) PublishUpdate(s sim.Snapshot)  { h.publish(KindUpdate, s) }

// PublishCompleted delivers the final event and then closes every
// subscription of the journey.
func (h *Hub) PublishCompleted(s sim.Snapshot) {
	h.publish(KindCompleted, s)
	h.CloseJourney(s.JourneyID, ReasonCompleted)
}

func (h *Hub) JourneyStarted(s sim.Snapshot)   { h.PublishStarted(s) }
func (h *Hub) JourneyUpdated(s sim.Snapshot)   { h.PublishUpdate(s) }
func (h *Hub) JourneyCompleted(s sim.Snapshot) { h.PublishCompleted(s) }
func (h *Hub) JourneyStopped(s sim.Snapshot)   { h.CloseJourney(s.JourneyID, ReasonStopped) }

func (h *Hub) publish(kind Kind, s sim.Snapshot) {
	ev := NewEvent(kind, s, h.now())
	h.Deliver(ev)
	h.enqueue(ev)
}

// Deliver sends ev to every subscriber of its journey. A subscriber whose
// delivery fails is removed; the others are unaffected.
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	t := h.topics[ev.JourneyID]
	h.mu.RUnlock()
	if t == nil {
		return
	}
	t.mu.Lock()
	subs := make([]*Subscription, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		if res := h.SendTo(s, ev); res != Delivered {
			h.logger.Debug("dropping subscriber", "journey_id", ev.JourneyID, "subscriber_id", s.id, "result", res.String())
			h.Unsubscribe(s, reasonFor(res))
		}
	}
}

// SendTo delivers ev to a single subscription, waiting at most SendTimeout
// when its buffer is full.
func (h *Hub) SendTo(s *Subscription, ev Event) Result {
	select {
	case <-s.done:
		return Closed
	default:
	}
	select {
	case s.events <- ev:
		s.touch(h.now())
		return Delivered
	default:
	}
	timer := time.NewTimer(h.opts.SendTimeout)
	defer timer.Stop()
	select {
	case s.events <- ev:
		s.touch(h.now())
		return Delivered
	case <-s.done:
		return Closed
	case <-timer.C:
		return TimedOut
	}
}

// CloseJourney removes every subscription of journeyID.
func (h *Hub) CloseJourney(journeyID string, reason Reason) {
	h.mu.Lock()
	t := h.topics[journeyID]
	delete(h.topics, journeyID)
	h.mu.Unlock()
	if t == nil {
		return
	}
	t.mu.Lock()
	subs := t.subs
	t.subs = make(map[string]*Subscription)
	t.mu.Unlock()
	for _, s := range subs {
		h.removed(s, reason)
	}
}

// PruneIdle removes subscriptions with no delivery since now-IdleTimeout and
// returns how many were removed.
func (h *Hub) PruneIdle(now time.Time) int {
	cutoff := now.Add(-h.opts.IdleTimeout)
	h.mu.RLock()
	topics := make([]*topic, 0, len(h.topics))
	for _, t := range h.topics {
		topics = append(topics, t)
	}
	h.mu.RUnlock()

	var idle []*Subscription
	for _, t := range topics {
		t.mu.Lock()
		for _, s := range t.subs {
			if s.lastActive().Before(cutoff) {
				idle = append(idle, s)
			}
		}
		t.mu.Unlock()
	}
	for _, s := range idle {
		h.Unsubscribe(s, ReasonIdle)
	}
	return len(idle)
}

func (h *Hub) janitor() {
	every := h.opts.IdleTimeout / 4
	if every < 50*time.Millisecond {
		every = 50 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if n := h.PruneIdle(h.now()); n > 0 {
				h.logger.Info("pruned idle subscribers", "count", n)
			}
		}
	}
}

func (h *Hub) enqueue(ev Event) {
	if h.opts.Publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "journey_id", ev.JourneyID, "error", err)
		return
	}
	msg := publisher.Message{Key: ev.JourneyID, Event: string(ev.Kind), Payload: payload}

	h.queueMu.RLock()
	defer h.queueMu.RUnlock()
	if h.queueClosed {
		return
	}
	select {
	case h.queue <- msg:
	default:
		h.opts.Metrics.PublishDropped()
		h.logger.Warn("publish queue full, dropping event", "journey_id", ev.JourneyID, "event", ev.Kind)
	}
}

func (h *Hub) drain() {
	for msg := range h.queue {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.PublishTimeout)
		err := h.opts.Publisher.Publish(ctx, msg)
		cancel()
		if err != nil {
			h.logger.Warn("publish event", "journey_id", msg.Key, "event", msg.Event, "error", err)
		}
	}
}

// Close removes every subscription, flushes the publish queue and closes the
// publisher. It returns early with ctx's error if ctx ends first.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	ids := make([]string, 0, len(h.topics))
	for id := range h.topics {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.CloseJourney(id, ReasonShutdown)
	}

	h.queueMu.Lock()
	h.queueClosed = true
	close(h.queue)
	h.queueMu.Unlock()
	close(h.stop)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("fanout drain: %w", ctx.Err())
	}
	if h.opts.Publisher != nil {
		return h.opts.Publisher.Close()
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) SetSubscribers(int)       {}
func (nopMetrics) SubscriberRemoved(string) {}
func (nopMetrics) PublishDropped()          {}
