package live

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Session is the top-level owner of the live layer for one authenticated
// user: the connection registry, the notification api client and the unread
// counter. a credential change produces a new stream identity - the old
// connection is torn down by its subscribers releasing, never reused - and
// resets the counter, which is then re-initialized from the authoritative
// count.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	config   *ClientConfig
	registry *ConnectionRegistry
	api      *NotificationApi
	unread   *UnreadCounter

	mutex sync.Mutex
	byJwt string
}

func NewSession(ctx context.Context, config *ClientConfig) *Session {
	cancelCtx, cancel := context.WithCancel(ctx)
	api := NewNotificationApiWithContext(cancelCtx, config.ApiUrl)
	api.SetByJwt(config.ByJwt)
	return &Session{
		ctx:      cancelCtx,
		cancel:   cancel,
		config:   config,
		registry: NewConnectionRegistry(cancelCtx, config.StreamSettings()),
		api:      api,
		unread:   NewUnreadCounter(api),
		byJwt:    config.ByJwt,
	}
}

// SetByJwt installs a new session credential (re-login). the identity
// returned by Identity changes, so subscribers re-acquiring get a fresh
// connection; the counter is zeroed and must be re-initialized by the caller.
func (self *Session) SetByJwt(byJwt string) {
	self.mutex.Lock()
	self.byJwt = byJwt
	self.mutex.Unlock()

	self.api.SetByJwt(byJwt)
	self.unread.Reset()
}

// Identity is the canonical stream identity for the current credential.
// zero when no api base or credential is configured.
func (self *Session) Identity() StreamIdentity {
	self.mutex.Lock()
	byJwt := self.byJwt
	self.mutex.Unlock()

	streamPath := self.config.StreamPath
	if streamPath == "" {
		streamPath = NotificationStreamPath
	}
	return NewStreamIdentity(self.config.ApiUrl, streamPath, byJwt)
}

// Subscribe acquires a subscription to the notification stream for the
// current credential.
func (self *Session) Subscribe(subscriber *Subscriber) *Subscription {
	return self.registry.Acquire(self.Identity(), subscriber)
}

func (self *Session) Registry() *ConnectionRegistry {
	return self.registry
}

func (self *Session) Api() *NotificationApi {
	return self.api
}

func (self *Session) Unread() *UnreadCounter {
	return self.unread
}

// MarkSeen marks notifications seen and applies the optimistic local
// decrement for the affected items on success.
func (self *Session) MarkSeen(ctx context.Context, markSeen *MarkSeenArgs) (*MarkSeenResult, error) {
	result, err := self.api.MarkSeenSync(ctx, markSeen)
	if err != nil {
		return nil, err
	}
	affected := result.Affected
	if affected == 0 && !markSeen.All {
		// older backends do not report the affected count
		affected = len(markSeen.Ids)
	}
	self.unread.Adjust(-affected)
	return result, nil
}

// DeleteNotification deletes one notification. `unseen` says whether the
// caller knows the item was still unseen, which licenses the optimistic
// decrement.
func (self *Session) DeleteNotification(ctx context.Context, notificationId int64, unseen bool) error {
	_, err := self.api.DeleteNotificationSync(ctx, notificationId)
	if err != nil {
		return err
	}
	if unseen {
		self.unread.Adjust(-1)
	}
	return nil
}

func (self *Session) Close() {
	glog.V(1).Infof("[session]close\n")
	self.unread.Close()
	self.registry.Shutdown()
	self.api.Close()
	self.cancel()
}
