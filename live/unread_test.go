package live

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

// count endpoint whose total and latency the test controls
type testCountServer struct {
	mutex sync.Mutex
	total int
	fail  bool
	delay time.Duration

	server *httptest.Server
}

func newTestCountServer(total int) *testCountServer {
	s := &testCountServer{
		total: total,
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		total := s.total
		fail := s.fail
		delay := s.delay
		s.mutex.Unlock()

		if 0 < delay {
			time.Sleep(delay)
		}
		if fail {
			http.Error(w, `{"message": "boom"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total": %d}`, total)
	}))
	return s
}

func (self *testCountServer) set(total int, fail bool, delay time.Duration) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.total = total
	self.fail = fail
	self.delay = delay
}

func (self *testCountServer) close() {
	self.server.Close()
}

func newTestCounter(t *testing.T, total int) (*UnreadCounter, *testCountServer) {
	server := newTestCountServer(total)
	t.Cleanup(server.close)
	api := NewNotificationApi(server.server.URL)
	api.SetByJwt("tok1")
	t.Cleanup(api.Close)
	return NewUnreadCounter(api), server
}

func TestUnreadCounterInitialize(t *testing.T) {
	counter, server := newTestCounter(t, 5)

	assert.Equal(t, counter.Count(), 0)
	assert.Equal(t, counter.Initialized(), false)

	err := counter.Initialize(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, counter.Count(), 5)
	assert.Equal(t, counter.Initialized(), true)

	// the authoritative count replaces any local value
	counter.Adjust(3)
	assert.Equal(t, counter.Count(), 8)
	server.set(2, false, 0)
	err = counter.Initialize(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, counter.Count(), 2)
}

func TestUnreadCounterFetchFailureKeepsValue(t *testing.T) {
	counter, server := newTestCounter(t, 5)

	err := counter.Initialize(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, counter.Count(), 5)

	// stale-but-present is preferred over zero or an error surface
	server.set(0, true, 0)
	err = counter.Initialize(context.Background())
	assert.NotEqual(t, err, nil)
	assert.Equal(t, counter.Count(), 5)
}

func TestUnreadCounterNeverNegative(t *testing.T) {
	counter, _ := newTestCounter(t, 0)

	counter.Adjust(-10)
	assert.Equal(t, counter.Count(), 0)

	counter.Adjust(3)
	counter.Adjust(-1)
	counter.Adjust(-100)
	assert.Equal(t, counter.Count(), 0)

	counter.Adjust(2)
	assert.Equal(t, counter.Count(), 2)
}

func TestUnreadCounterPushEvents(t *testing.T) {
	counter, _ := newTestCounter(t, 0)

	// notification-type events increment by one
	event, _ := ParsePushEvent([]byte(`{"id": 1, "type": "OFFERED", "message": "x"}`))
	counter.OnPushEvent(event)
	assert.Equal(t, counter.Count(), 1)

	// both-class events increment once
	event, _ = ParsePushEvent([]byte(`{"id": 2, "type": "DONE", "request": {"id": 7}}`))
	counter.OnPushEvent(event)
	assert.Equal(t, counter.Count(), 2)

	// domain updates must not affect the counter
	event, _ = ParsePushEvent([]byte(`{"request": {"id": 7, "status": "DONE"}}`))
	counter.OnPushEvent(event)
	assert.Equal(t, counter.Count(), 2)

	counter.OnPushEvent(nil)
	assert.Equal(t, counter.Count(), 2)
}

func TestUnreadCounterReset(t *testing.T) {
	counter, _ := newTestCounter(t, 4)

	err := counter.Initialize(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, counter.Count(), 4)

	counter.Reset()
	assert.Equal(t, counter.Count(), 0)
	assert.Equal(t, counter.Initialized(), false)
}

func TestUnreadCounterStaleFetchDiscarded(t *testing.T) {
	counter, server := newTestCounter(t, 5)
	server.set(5, false, 200*time.Millisecond)

	done := make(chan error)
	go func() {
		done <- counter.Initialize(context.Background())
	}()
	// give the fetch time to start, then reset while it is in flight
	time.Sleep(50 * time.Millisecond)
	counter.Reset()

	err := <-done
	assert.Equal(t, err, nil)
	// the resolved value must not be applied after the reset
	assert.Equal(t, counter.Count(), 0)
	assert.Equal(t, counter.Initialized(), false)
}

func TestUnreadCounterCloseDiscardsFetch(t *testing.T) {
	counter, server := newTestCounter(t, 7)
	server.set(7, false, 200*time.Millisecond)

	done := make(chan error)
	go func() {
		done <- counter.Initialize(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	counter.Close()

	err := <-done
	assert.Equal(t, err, nil)
	assert.Equal(t, counter.Count(), 0)

	// a closed counter ignores adjustments
	counter.Adjust(5)
	assert.Equal(t, counter.Count(), 0)
}

func TestUnreadCounterWatchers(t *testing.T) {
	counter, _ := newTestCounter(t, 0)

	var observed []int
	remove := counter.AddWatcher(func(count int) {
		observed = append(observed, count)
	})

	counter.Adjust(1)
	counter.Adjust(1)
	counter.Adjust(-1)
	assert.Equal(t, observed, []int{1, 2, 1})

	remove()
	counter.Adjust(1)
	assert.Equal(t, observed, []int{1, 2, 1})
}

func TestUnreadCounterChangeChannel(t *testing.T) {
	counter, _ := newTestCounter(t, 0)

	notify := counter.ChangeChannel()
	counter.Adjust(1)
	select {
	case <-notify:
	case <-time.After(1 * time.Second):
		t.Fatal("change channel must close on adjustment")
	}
	assert.Equal(t, counter.Count(), 1)
}
