package live

import (
	"sync"

	"golang.org/x/exp/slices"
)

// one row of a request listing page
type RequestRow struct {
	Id           int64   `json:"id"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	PriceOffered *Amount `json:"priceOffered"`
	PriceAgreed  *Amount `json:"priceAgreed"`
	CreatedAt    string  `json:"createdAt"`
}

// RequestList is a page-level consumer that maintains the current page of
// request rows and merges pushed domain updates into it by id. rows not on
// the page are ignored, never inserted. a Replace from a completed list fetch
// is last-write-wins over any merges applied in the meantime, which is
// naturally idempotent per entity.
type RequestList struct {
	mutex sync.Mutex
	rows  []*RequestRow
}

func NewRequestList(rows []*RequestRow) *RequestList {
	return &RequestList{
		rows: slices.Clone(rows),
	}
}

func (self *RequestList) Replace(rows []*RequestRow) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.rows = slices.Clone(rows)
}

func (self *RequestList) Rows() []*RequestRow {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	rows := make([]*RequestRow, len(self.rows))
	for i, row := range self.rows {
		rowCopy := *row
		rows[i] = &rowCopy
	}
	return rows
}

// OnPushEvent merges the embedded request reference of a domain-update event
// into the matching row. fields absent from the payload keep their current
// value.
func (self *RequestList) OnPushEvent(event *PushEvent) {
	if !Classify(event).IsDomainUpdate() {
		return
	}
	ref := event.Request

	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.IndexFunc(self.rows, func(row *RequestRow) bool {
		return row.Id == ref.Id
	})
	if i < 0 {
		// not on the current page
		return
	}

	merged := *self.rows[i]
	if ref.Title != "" {
		merged.Title = ref.Title
	}
	if ref.Status != "" {
		merged.Status = ref.Status
	}
	if ref.PriceOffered != nil {
		merged.PriceOffered = ref.PriceOffered
	}
	if ref.PriceAgreed != nil {
		merged.PriceAgreed = ref.PriceAgreed
	}
	self.rows[i] = &merged
}

func (self *RequestList) Subscriber() *Subscriber {
	return &Subscriber{
		OnEvent: self.OnPushEvent,
	}
}
