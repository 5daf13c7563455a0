package live

import (
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// makes a copy of the callbacks on read so that fan out never holds the lock
type CallbackList[T any] struct {
	mutex       sync.Mutex
	callbackIds []Id
	callbacks   map[Id]T
}

func NewCallbackList[T any]() *CallbackList[T] {
	return &CallbackList[T]{
		callbacks: map[Id]T{},
	}
}

func (self *CallbackList[T]) Get() []T {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	callbacks := make([]T, 0, len(self.callbackIds))
	for _, callbackId := range self.callbackIds {
		callbacks = append(callbacks, self.callbacks[callbackId])
	}
	return callbacks
}

func (self *CallbackList[T]) Len() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.callbackIds)
}

// returns a remove function. remove is idempotent.
func (self *CallbackList[T]) Add(callback T) func() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	callbackId := NewId()
	self.callbackIds = append(self.callbackIds, callbackId)
	self.callbacks[callbackId] = callback

	return func() {
		self.remove(callbackId)
	}
}

func (self *CallbackList[T]) remove(callbackId Id) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	if _, ok := self.callbacks[callbackId]; !ok {
		// already removed
		return
	}
	delete(self.callbacks, callbackId)
	for i, existingId := range self.callbackIds {
		if existingId == callbackId {
			self.callbackIds = append(self.callbackIds[:i], self.callbackIds[i+1:]...)
			break
		}
	}
}

func (self *CallbackList[T]) Clear() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	maps.Clear(self.callbacks)
	self.callbackIds = nil
}

// fixed-delay reconnect window
type Reconnect struct {
	timeout time.Duration
}

func NewReconnect(timeout time.Duration) *Reconnect {
	return &Reconnect{
		timeout: timeout,
	}
}

func (self *Reconnect) After() <-chan time.Time {
	return time.After(self.timeout)
}

// reconnect window that doubles on each consecutive failure up to a ceiling.
// the attempt count resets to zero after any successful open.
type ExpandingReconnect struct {
	initialTimeout time.Duration
	maxTimeout     time.Duration

	mutex   sync.Mutex
	attempt int
}

func NewExpandingReconnect(initialTimeout time.Duration, maxTimeout time.Duration) *ExpandingReconnect {
	return &ExpandingReconnect{
		initialTimeout: initialTimeout,
		maxTimeout:     maxTimeout,
	}
}

func (self *ExpandingReconnect) NextTimeout() time.Duration {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	timeout := self.initialTimeout
	for i := 0; i < self.attempt; i += 1 {
		timeout *= 2
		if self.maxTimeout <= timeout {
			timeout = self.maxTimeout
			break
		}
	}
	self.attempt += 1
	return timeout
}

func (self *ExpandingReconnect) After() <-chan time.Time {
	return time.After(self.NextTimeout())
}

func (self *ExpandingReconnect) Reset() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.attempt = 0
}

// Monitor notifies waiters of a state change by closing the update channel
// and replacing it with a new one
type Monitor struct {
	mutex  sync.Mutex
	update chan struct{}
}

func NewMonitor() *Monitor {
	return &Monitor{
		update: make(chan struct{}),
	}
}

func (self *Monitor) NotifyChannel() <-chan struct{} {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.update
}

func (self *Monitor) NotifyAll() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	close(self.update)
	self.update = make(chan struct{})
}
