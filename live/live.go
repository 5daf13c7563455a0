package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func IdFromBytes(idBytes []byte) (Id, error) {
	if len(idBytes) != 16 {
		return Id{}, errors.New("Id must be 16 bytes")
	}
	return Id(idBytes), nil
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

func (self Id) String() string {
	return ulid.ULID(self).String()
}

// money amounts from the backend are nominally JSON numbers,
// but some endpoints serialize them as strings
type Amount float64

func (self *Amount) UnmarshalJSON(src []byte) error {
	s := strings.TrimSpace(string(src))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*self = Amount(v)
	return nil
}

// notification types emitted by the marketplace backend
const (
	NotificationTypeOffered     = "OFFERED"
	NotificationTypeInProgress  = "IN_PROGRESS"
	NotificationTypeDone        = "DONE"
	NotificationTypeCancelled   = "CANCELLED"
	NotificationTypeAdminCancel = "ADMIN_CANCEL"
)

func LabelForType(notificationType string) string {
	switch notificationType {
	case NotificationTypeOffered:
		return "New offer"
	case NotificationTypeInProgress:
		return "Work started"
	case NotificationTypeDone:
		return "Work completed"
	case NotificationTypeCancelled:
		return "Work cancelled"
	case NotificationTypeAdminCancel:
		return "Cancelled by admin"
	default:
		return "Notification"
	}
}

// embedded reference to a service request carried by push payloads
type RequestRef struct {
	Id           int64   `json:"id"`
	Title        string  `json:"title,omitempty"`
	Status       string  `json:"status,omitempty"`
	PriceOffered *Amount `json:"priceOffered,omitempty"`
	PriceAgreed  *Amount `json:"priceAgreed,omitempty"`
}

// one parsed frame from the push stream.
// immutable once parsed. consumers derive their own view state from it.
type PushEvent struct {
	Id        int64       `json:"id,omitempty"`
	Type      string      `json:"type,omitempty"`
	Message   string      `json:"message,omitempty"`
	CreatedAt string      `json:"createdAt,omitempty"`
	Request   *RequestRef `json:"request,omitempty"`
}

func ParsePushEvent(payload []byte) (*PushEvent, error) {
	event := &PushEvent{}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (self *PushEvent) RequestHref() string {
	if self.Request == nil || self.Request.Id == 0 {
		return ""
	}
	return fmt.Sprintf("/requests/%d", self.Request.Id)
}

// event classification

type EventClass int

const (
	ClassNone EventClass = iota
	ClassNotification
	ClassDomainUpdate
	ClassBoth
)

func (self EventClass) String() string {
	switch self {
	case ClassNotification:
		return "notification"
	case ClassDomainUpdate:
		return "domain-update"
	case ClassBoth:
		return "both"
	default:
		return "none"
	}
}

func (self EventClass) IsNotification() bool {
	return self == ClassNotification || self == ClassBoth
}

func (self EventClass) IsDomainUpdate() bool {
	return self == ClassDomainUpdate || self == ClassBoth
}

// Classify decides how a pushed payload is handled.
// A payload is a notification iff it carries a non-empty id and at least one
// of message or type. A payload carrying a request reference with an id is a
// domain update. A payload satisfying both is both: the unread counter
// increments once and the embedded reference is still offered to
// list-merging consumers.
func Classify(event *PushEvent) EventClass {
	if event == nil {
		return ClassNone
	}
	notification := event.Id != 0 && (event.Message != "" || event.Type != "")
	domainUpdate := event.Request != nil && event.Request.Id != 0
	switch {
	case notification && domainUpdate:
		return ClassBoth
	case notification:
		return ClassNotification
	case domainUpdate:
		return ClassDomainUpdate
	default:
		return ClassNone
	}
}

// stored notification as returned by the list endpoint
type Notification struct {
	Id        int64       `json:"id"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	CreatedAt string      `json:"createdAt"`
	SeenAt    *string     `json:"seenAt"`
	Request   *RequestRef `json:"request,omitempty"`
}

func (self *Notification) Seen() bool {
	return self.SeenAt != nil && *self.SeenAt != ""
}

type ListMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type NotificationList struct {
	Items []*Notification `json:"items"`
	Meta  ListMeta        `json:"meta"`
}
