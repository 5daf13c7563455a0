package live

import (
	"sync"
)

// Subscription is the handle one observing component holds for its interest
// in a stream identity. it reflects the current liveness of the underlying
// connection synchronously on acquire, and Close is safe to call any number
// of times. the subscription holds only the identity and its registration,
// never the transport.
type Subscription struct {
	registry     *ConnectionRegistry
	identity     StreamIdentity
	subscriberId Id
	connection   *StreamConnection

	closeLock sync.Mutex
	closed    bool
}

func newSubscription(
	registry *ConnectionRegistry,
	identity StreamIdentity,
	subscriberId Id,
	connection *StreamConnection,
) *Subscription {
	return &Subscription{
		registry:     registry,
		identity:     identity,
		subscriberId: subscriberId,
		connection:   connection,
	}
}

// a disabled subscription delivers no events and reports not connected.
// used for a zero identity, where no transport must ever be created.
func newDisabledSubscription() *Subscription {
	return &Subscription{
		closed: true,
	}
}

func (self *Subscription) Disabled() bool {
	return self.connection == nil
}

func (self *Subscription) Connected() bool {
	if self.connection == nil {
		return false
	}
	self.closeLock.Lock()
	closed := self.closed
	self.closeLock.Unlock()
	if closed {
		return false
	}
	return self.connection.Connected()
}

func (self *Subscription) LatestEvent() *PushEvent {
	if self.connection == nil {
		return nil
	}
	return self.connection.LastEvent()
}

// Close releases the registration. double close must not corrupt the
// registry's reference counts.
func (self *Subscription) Close() {
	self.closeLock.Lock()
	if self.closed {
		self.closeLock.Unlock()
		return
	}
	self.closed = true
	self.closeLock.Unlock()

	if self.registry != nil {
		self.registry.release(self.identity, self.subscriberId)
	}
}
