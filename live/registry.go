package live

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// ConnectionRegistry keeps at most one live StreamConnection per
// StreamIdentity, shared across arbitrarily many subscribers. it is a
// constructed object with an explicit lifecycle rather than ambient global
// state, so it can be owned by the session context and reset between tests.
type ConnectionRegistry struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *StreamSettings

	// the sole process-wide shared resource. insert/remove happens only
	// within Acquire/release, under this mutex.
	mutex       sync.Mutex
	connections map[StreamIdentity]*StreamConnection
	refCounts   map[StreamIdentity]int
	shutdown    bool
}

func NewConnectionRegistryWithDefaults(ctx context.Context) *ConnectionRegistry {
	return NewConnectionRegistry(ctx, DefaultStreamSettings())
}

func NewConnectionRegistry(ctx context.Context, settings *StreamSettings) *ConnectionRegistry {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &ConnectionRegistry{
		ctx:         cancelCtx,
		cancel:      cancel,
		settings:    settings,
		connections: map[StreamIdentity]*StreamConnection{},
		refCounts:   map[StreamIdentity]int{},
	}
}

// Acquire registers the subscriber against the connection for `identity`,
// opening the connection if it does not exist yet. a zero identity (missing
// api base or credential) returns a disabled subscription that delivers no
// events and reports not connected, without creating a transport.
func (self *ConnectionRegistry) Acquire(identity StreamIdentity, subscriber *Subscriber) *Subscription {
	if identity.IsZero() {
		subscription := newDisabledSubscription()
		if subscriber != nil {
			callSubscriberStatus(subscriber, false)
		}
		return subscription
	}
	if subscriber == nil {
		subscriber = &Subscriber{}
	}

	self.mutex.Lock()
	if self.shutdown {
		self.mutex.Unlock()
		return newDisabledSubscription()
	}
	connection, ok := self.connections[identity]
	if !ok {
		glog.V(1).Infof("[r]open %s\n", identity)
		connection = newStreamConnection(self.ctx, identity, self.settings)
		self.connections[identity] = connection
	}
	self.refCounts[identity] += 1
	self.mutex.Unlock()

	subscriberId := NewId()
	// attach outside the registry lock. initial status and replay are
	// delivered synchronously to the new subscriber only.
	connection.addSubscriber(subscriberId, subscriber)

	return newSubscription(self, identity, subscriberId, connection)
}

// release removes one subscriber. when the reference count reaches zero the
// transport is closed exactly once and the entry removed.
func (self *ConnectionRegistry) release(identity StreamIdentity, subscriberId Id) {
	self.mutex.Lock()
	connection, ok := self.connections[identity]
	if !ok {
		self.mutex.Unlock()
		return
	}
	connection.removeSubscriber(subscriberId)
	self.refCounts[identity] -= 1
	var closeConnection *StreamConnection
	if self.refCounts[identity] <= 0 {
		closeConnection = connection
		delete(self.connections, identity)
		delete(self.refCounts, identity)
	}
	self.mutex.Unlock()

	if closeConnection != nil {
		glog.V(1).Infof("[r]last release %s\n", identity)
		closeConnection.close()
	}
}

func (self *ConnectionRegistry) ConnectionCount() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.connections)
}

// Shutdown closes every connection. subsequent Acquire calls return disabled
// subscriptions.
func (self *ConnectionRegistry) Shutdown() {
	self.mutex.Lock()
	self.shutdown = true
	connections := make([]*StreamConnection, 0, len(self.connections))
	for _, connection := range self.connections {
		connections = append(connections, connection)
	}
	self.connections = map[StreamIdentity]*StreamConnection{}
	self.refCounts = map[StreamIdentity]int{}
	self.mutex.Unlock()

	for _, connection := range connections {
		connection.close()
	}
	self.cancel()
}
