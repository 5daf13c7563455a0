package live

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

type ToasterSettings struct {
	// how long a toast stays active
	ToastTimeout time.Duration
	// bound on remembered notification ids for duplicate suppression
	MaxSeenIds int
}

func DefaultToasterSettings() *ToasterSettings {
	return &ToasterSettings{
		ToastTimeout: 6 * time.Second,
		MaxSeenIds:   200,
	}
}

type Toast struct {
	Key       string
	Title     string
	Message   string
	Href      string
	ExpiresAt time.Time
}

// Toaster turns qualifying notification events into short-lived toasts.
// duplicate notification ids are suppressed using a bounded ring of recently
// seen ids.
type Toaster struct {
	settings *ToasterSettings

	mutex     sync.Mutex
	toasts    []*Toast
	seenIds   map[int64]bool
	seenQueue []int64
}

func NewToasterWithDefaults() *Toaster {
	return NewToaster(DefaultToasterSettings())
}

func NewToaster(settings *ToasterSettings) *Toaster {
	return &Toaster{
		settings: settings,
		seenIds:  map[int64]bool{},
	}
}

func (self *Toaster) OnPushEvent(event *PushEvent) {
	if !Classify(event).IsNotification() {
		return
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	if self.seenIds[event.Id] {
		return
	}
	self.seenIds[event.Id] = true
	self.seenQueue = append(self.seenQueue, event.Id)
	if self.settings.MaxSeenIds < len(self.seenQueue) {
		oldest := self.seenQueue[0]
		self.seenQueue = self.seenQueue[1:]
		delete(self.seenIds, oldest)
	}

	message := event.Message
	if message == "" {
		message = "New notification"
	}
	toast := &Toast{
		Key:       fmt.Sprintf("%d-%d", event.Id, time.Now().UnixNano()),
		Title:     LabelForType(event.Type),
		Message:   message,
		Href:      event.RequestHref(),
		ExpiresAt: time.Now().Add(self.settings.ToastTimeout),
	}
	self.toasts = append([]*Toast{toast}, self.toasts...)
}

// ActiveToasts prunes expired toasts and returns the remainder, newest first
func (self *Toaster) ActiveToasts() []*Toast {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	now := time.Now()
	self.toasts = slices.DeleteFunc(self.toasts, func(toast *Toast) bool {
		return toast.ExpiresAt.Before(now)
	})
	return slices.Clone(self.toasts)
}

func (self *Toaster) Dismiss(key string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.toasts = slices.DeleteFunc(self.toasts, func(toast *Toast) bool {
		return toast.Key == key
	})
}

func (self *Toaster) Subscriber() *Subscriber {
	return &Subscriber{
		OnEvent: self.OnPushEvent,
	}
}
