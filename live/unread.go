package live

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// UnreadCounter reconciles the unseen-notification count across three
// unordered sources: the authoritative server count, local optimistic
// adjustments, and increments inferred from push events. the value is
// eventually approximate, corrected back to ground truth by re-running
// Initialize rather than by exact distributed accounting. it never reports a
// value below zero.
//
// cross-component adjustments go through Adjust and the typed watcher list;
// there is no ambient event bus.
type UnreadCounter struct {
	api *NotificationApi

	mutex       sync.Mutex
	count       int
	initialized bool
	// bumped by Reset and Close. an in-flight authoritative fetch started
	// under an older generation discards its result on arrival instead of
	// mutating state after disposal.
	generation int
	closed     bool

	watchCallbacks *CallbackList[CountWatchFunction]
	monitor        *Monitor
}

type CountWatchFunction func(count int)

func NewUnreadCounter(api *NotificationApi) *UnreadCounter {
	return &UnreadCounter{
		api:            api,
		watchCallbacks: NewCallbackList[CountWatchFunction](),
		monitor:        NewMonitor(),
	}
}

// Initialize fetches the authoritative count and replaces the local value.
// a failed fetch keeps the previous value in place: stale-but-present is
// preferred over resetting to zero.
func (self *UnreadCounter) Initialize(ctx context.Context) error {
	self.mutex.Lock()
	generation := self.generation
	self.mutex.Unlock()

	result, err := self.api.UnreadCountSync(ctx)
	if err != nil {
		glog.Infof("[u]count fetch error = %s\n", err)
		return err
	}

	self.mutex.Lock()
	if self.closed || generation != self.generation {
		// disposed or reset while the fetch was in flight
		self.mutex.Unlock()
		return nil
	}
	self.count = max(0, result.Total)
	self.initialized = true
	count := self.count
	self.mutex.Unlock()

	self.notify(count)
	return nil
}

// OnPushEvent increments the counter for qualifying notification events.
// domain updates do not affect the counter.
func (self *UnreadCounter) OnPushEvent(event *PushEvent) {
	if !Classify(event).IsNotification() {
		return
	}
	self.Adjust(1)
}

// Adjust applies an immediate local delta, clamped at zero. negative for
// items marked seen or deleted, positive for items learned about outside the
// push channel.
func (self *UnreadCounter) Adjust(delta int) {
	self.mutex.Lock()
	if self.closed {
		self.mutex.Unlock()
		return
	}
	self.count = max(0, self.count+delta)
	count := self.count
	self.mutex.Unlock()

	self.notify(count)
}

// Reset zeroes the counter (logout or credential change). an in-flight
// Initialize from before the reset will not resurrect the old value.
func (self *UnreadCounter) Reset() {
	self.mutex.Lock()
	self.count = 0
	self.initialized = false
	self.generation += 1
	self.mutex.Unlock()

	self.notify(0)
}

func (self *UnreadCounter) Close() {
	self.mutex.Lock()
	self.closed = true
	self.generation += 1
	self.mutex.Unlock()
	self.watchCallbacks.Clear()
}

func (self *UnreadCounter) Count() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.count
}

func (self *UnreadCounter) Initialized() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.initialized
}

// AddWatcher registers a callback invoked with the new value on every change.
// returns a remove function.
func (self *UnreadCounter) AddWatcher(callback CountWatchFunction) func() {
	return self.watchCallbacks.Add(callback)
}

// ChangeChannel closes on the next change, for select-based consumers
func (self *UnreadCounter) ChangeChannel() <-chan struct{} {
	return self.monitor.NotifyChannel()
}

// Subscriber adapts the counter to the stream contract so it can be attached
// directly to a subscription.
func (self *UnreadCounter) Subscriber() *Subscriber {
	return &Subscriber{
		OnEvent: self.OnPushEvent,
	}
}

func (self *UnreadCounter) notify(count int) {
	for _, callback := range self.watchCallbacks.Get() {
		callback(count)
	}
	self.monitor.NotifyAll()
}
