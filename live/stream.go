package live

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// state machine for one live stream:
//
//	Connecting -> Open -> (Error -> Reconnecting -> Connecting) -> Closed
//
// Closed is terminal and only reached when the registry closes the
// connection. a transport-level error alone never terminates the connection.
type StreamState string

const (
	StreamStateConnecting   StreamState = "Connecting"
	StreamStateOpen         StreamState = "Open"
	StreamStateReconnecting StreamState = "Reconnecting"
	StreamStateClosed       StreamState = "Closed"
)

type StreamSettings struct {
	ReconnectInitialTimeout time.Duration
	ReconnectMaxTimeout     time.Duration
	// replay the last known event to a newly attached subscriber.
	// the notification badge then does not need a separate fetch to catch up
	// on an event that arrived just before it attached.
	ReplayLastEvent    bool
	TransportGenerator TransportGenerator
	TransportSettings  *TransportSettings
}

func DefaultStreamSettings() *StreamSettings {
	return &StreamSettings{
		ReconnectInitialTimeout: 1 * time.Second,
		ReconnectMaxTimeout:     30 * time.Second,
		ReplayLastEvent:         true,
		TransportGenerator:      NewSseTransport,
		TransportSettings:       DefaultTransportSettings(),
	}
}

// the callback pair one observing component registers against a stream.
// no ordering is guaranteed between subscribers of the same connection.
type Subscriber struct {
	OnEvent  func(event *PushEvent)
	OnStatus func(connected bool)
}

// StreamConnection owns one live transport: connect, parse frames, detect
// liveness, reconnect with backoff, and fan out parsed events to all current
// subscribers. it is exclusively owned by the ConnectionRegistry.
type StreamConnection struct {
	ctx    context.Context
	cancel context.CancelFunc

	identity  StreamIdentity
	transport Transport
	settings  *StreamSettings

	stateLock   sync.Mutex
	state       StreamState
	connected   bool
	lastEvent   *PushEvent
	subscribers map[Id]*Subscriber
}

func newStreamConnection(ctx context.Context, identity StreamIdentity, settings *StreamSettings) *StreamConnection {
	cancelCtx, cancel := context.WithCancel(ctx)
	connection := &StreamConnection{
		ctx:         cancelCtx,
		cancel:      cancel,
		identity:    identity,
		transport:   settings.TransportGenerator(identity.Url(), settings.TransportSettings),
		settings:    settings,
		state:       StreamStateConnecting,
		subscribers: map[Id]*Subscriber{},
	}
	go connection.run()
	return connection
}

func (self *StreamConnection) run() {
	defer func() {
		self.stateLock.Lock()
		self.state = StreamStateClosed
		self.stateLock.Unlock()
	}()

	reconnect := NewExpandingReconnect(
		self.settings.ReconnectInitialTimeout,
		self.settings.ReconnectMaxTimeout,
	)

	for {
		self.setState(StreamStateConnecting)
		glog.V(1).Infof("[s]connect %s\n", self.identity)

		frames, err := self.transport.Connect(self.ctx)
		if err != nil {
			if self.ctx.Err() != nil {
				return
			}
			glog.V(1).Infof("[s]connect error %s = %s\n", self.identity, err)
			self.setConnected(false)
			self.setState(StreamStateReconnecting)
			select {
			case <-self.ctx.Done():
				return
			case <-reconnect.After():
				continue
			}
		}

		// the retry counter resets after any successful open
		reconnect.Reset()
		self.setState(StreamStateOpen)
		self.setConnected(true)

		for {
			payload, err := frames.Read()
			if err != nil {
				break
			}
			event, err := ParsePushEvent(payload)
			if err != nil {
				// malformed frames are dropped, not fatal, not surfaced
				continue
			}
			self.deliver(event)
		}
		frames.Close()

		if self.ctx.Err() != nil {
			return
		}

		self.setConnected(false)
		self.setState(StreamStateReconnecting)
		select {
		case <-self.ctx.Done():
			return
		case <-reconnect.After():
		}
	}
}

// deliver fans out one parsed event to every current subscriber.
// frames are delivered in the order the transport received them.
func (self *StreamConnection) deliver(event *PushEvent) {
	self.stateLock.Lock()
	self.lastEvent = event
	subscribers := make([]*Subscriber, 0, len(self.subscribers))
	for _, subscriber := range self.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	self.stateLock.Unlock()

	for _, subscriber := range subscribers {
		callSubscriberEvent(subscriber, event)
	}
}

func (self *StreamConnection) setState(state StreamState) {
	self.stateLock.Lock()
	if self.state == StreamStateClosed {
		self.stateLock.Unlock()
		return
	}
	self.state = state
	self.stateLock.Unlock()
}

func (self *StreamConnection) setConnected(connected bool) {
	self.stateLock.Lock()
	changed := self.connected != connected
	self.connected = connected
	subscribers := make([]*Subscriber, 0, len(self.subscribers))
	for _, subscriber := range self.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	self.stateLock.Unlock()

	if !changed {
		return
	}
	for _, subscriber := range subscribers {
		callSubscriberStatus(subscriber, connected)
	}
}

func (self *StreamConnection) State() StreamState {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.state
}

func (self *StreamConnection) Connected() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connected
}

func (self *StreamConnection) LastEvent() *PushEvent {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.lastEvent
}

// addSubscriber attaches the callbacks and synchronously reflects the current
// liveness, plus the most recent event when replay is enabled
func (self *StreamConnection) addSubscriber(subscriberId Id, subscriber *Subscriber) {
	self.stateLock.Lock()
	self.subscribers[subscriberId] = subscriber
	connected := self.connected
	lastEvent := self.lastEvent
	self.stateLock.Unlock()

	callSubscriberStatus(subscriber, connected)
	if self.settings.ReplayLastEvent && lastEvent != nil {
		callSubscriberEvent(subscriber, lastEvent)
	}
}

// returns the number of remaining subscribers
func (self *StreamConnection) removeSubscriber(subscriberId Id) int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	delete(self.subscribers, subscriberId)
	return len(self.subscribers)
}

func (self *StreamConnection) close() {
	glog.V(1).Infof("[s]close %s\n", self.identity)
	self.cancel()
}

// callbacks are wrapped to check for nil and recover from errors so that one
// subscriber can never crash the pipeline

func callSubscriberEvent(subscriber *Subscriber, event *PushEvent) {
	if subscriber.OnEvent == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			glog.Infof("[s]subscriber event callback panic = %s\n", r)
		}
	}()
	subscriber.OnEvent(event)
}

func callSubscriberStatus(subscriber *Subscriber, connected bool) {
	if subscriber.OnStatus == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			glog.Infof("[s]subscriber status callback panic = %s\n", r)
		}
	}()
	subscriber.OnStatus(connected)
}
