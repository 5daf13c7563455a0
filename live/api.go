package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

// the session credential was rejected. the authentication collaborator owns
// the response (force a new login, which produces a new stream identity).
var ErrUnauthorized = errors.New("unauthorized")

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R])
	callback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return callback, c
}

// NotificationApi is the typed client for the notification endpoints the
// unread counter depends on. all other marketplace REST surfaces are owned by
// collaborators.
type NotificationApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string

	byJwt string
}

func NewNotificationApi(apiUrl string) *NotificationApi {
	return NewNotificationApiWithContext(context.Background(), apiUrl)
}

func NewNotificationApiWithContext(ctx context.Context, apiUrl string) *NotificationApi {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &NotificationApi{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: strings.TrimSuffix(apiUrl, "/"),
	}
}

// this gets attached to api calls that need it
func (self *NotificationApi) SetByJwt(byJwt string) {
	self.byJwt = byJwt
}

func (self *NotificationApi) Close() {
	self.cancel()
}

type UnreadCountCallback apiCallback[*UnreadCountResult]

type UnreadCountResult struct {
	Total int `json:"total"`
}

func (self *NotificationApi) UnreadCount(callback UnreadCountCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/notifications/me/count", self.apiUrl),
		self.byJwt,
		&UnreadCountResult{},
		callback,
	)
}

func (self *NotificationApi) UnreadCountSync(ctx context.Context) (*UnreadCountResult, error) {
	return get(
		ctx,
		fmt.Sprintf("%s/notifications/me/count", self.apiUrl),
		self.byJwt,
		&UnreadCountResult{},
		NewNoopApiCallback[*UnreadCountResult](),
	)
}

type NotificationListCallback apiCallback[*NotificationList]

type NotificationListArgs struct {
	Page   int
	Limit  int
	Unseen bool
}

func (self *NotificationApi) Notifications(args *NotificationListArgs, callback NotificationListCallback) {
	go get(
		self.ctx,
		self.notificationsUrl(args),
		self.byJwt,
		&NotificationList{},
		callback,
	)
}

func (self *NotificationApi) NotificationsSync(ctx context.Context, args *NotificationListArgs) (*NotificationList, error) {
	return get(
		ctx,
		self.notificationsUrl(args),
		self.byJwt,
		&NotificationList{},
		NewNoopApiCallback[*NotificationList](),
	)
}

func (self *NotificationApi) notificationsUrl(args *NotificationListArgs) string {
	query := url.Values{}
	if 0 < args.Page {
		query.Set("page", fmt.Sprintf("%d", args.Page))
	}
	if 0 < args.Limit {
		query.Set("limit", fmt.Sprintf("%d", args.Limit))
	}
	if args.Unseen {
		query.Set("unseen", "true")
	}
	return fmt.Sprintf("%s/notifications/me?%s", self.apiUrl, query.Encode())
}

type MarkSeenCallback apiCallback[*MarkSeenResult]

type MarkSeenArgs struct {
	Ids []int64 `json:"ids,omitempty"`
	All bool    `json:"all,omitempty"`
}

type MarkSeenResult struct {
	Affected int `json:"affected"`
}

// MarkSeen marks notifications as seen. on success the caller applies the
// optimistic local decrement for the affected items.
func (self *NotificationApi) MarkSeen(markSeen *MarkSeenArgs, callback MarkSeenCallback) {
	go put(
		self.ctx,
		fmt.Sprintf("%s/notifications/me/seen", self.apiUrl),
		markSeen,
		self.byJwt,
		&MarkSeenResult{},
		callback,
	)
}

func (self *NotificationApi) MarkSeenSync(ctx context.Context, markSeen *MarkSeenArgs) (*MarkSeenResult, error) {
	return put(
		ctx,
		fmt.Sprintf("%s/notifications/me/seen", self.apiUrl),
		markSeen,
		self.byJwt,
		&MarkSeenResult{},
		NewNoopApiCallback[*MarkSeenResult](),
	)
}

type DeleteNotificationCallback apiCallback[*DeleteNotificationResult]

type DeleteNotificationResult struct{}

func (self *NotificationApi) DeleteNotification(notificationId int64, callback DeleteNotificationCallback) {
	go del(
		self.ctx,
		fmt.Sprintf("%s/notifications/%d", self.apiUrl, notificationId),
		self.byJwt,
		&DeleteNotificationResult{},
		callback,
	)
}

func (self *NotificationApi) DeleteNotificationSync(ctx context.Context, notificationId int64) (*DeleteNotificationResult, error) {
	return del(
		ctx,
		fmt.Sprintf("%s/notifications/%d", self.apiUrl, notificationId),
		self.byJwt,
		&DeleteNotificationResult{},
		NewNoopApiCallback[*DeleteNotificationResult](),
	)
}

func get[R any](ctx context.Context, url string, byJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "GET", url, nil, byJwt, result, callback)
}

func put[R any](ctx context.Context, url string, args any, byJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "PUT", url, args, byJwt, result, callback)
}

func del[R any](ctx context.Context, url string, byJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "DELETE", url, nil, byJwt, result, callback)
}

func request[R any](ctx context.Context, method string, url string, args any, byJwt string, result R, callback apiCallback[R]) (R, error) {
	var requestBody io.Reader
	if args != nil {
		requestBodyBytes, err := json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
		requestBody = bytes.NewReader(requestBodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Accept", "application/json")
	if args != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	if byJwt != "" {
		auth := fmt.Sprintf("Bearer %s", byJwt)
		req.Header.Add("Authorization", auth)
	}

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if r.StatusCode == http.StatusUnauthorized {
		callback.Result(result, ErrUnauthorized)
		return result, ErrUnauthorized
	}
	if r.StatusCode != http.StatusOK && r.StatusCode != http.StatusNoContent {
		err = errors.New(errorMessage(r, responseBodyBytes))
		callback.Result(result, err)
		return result, err
	}

	if err != nil {
		callback.Result(result, err)
		return result, err
	}

	if r.StatusCode == http.StatusNoContent || len(responseBodyBytes) == 0 {
		callback.Result(result, nil)
		return result, nil
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}

// the backend returns either {"message": ...} (string or array) or
// {"error": ...}; fall back to the raw body, then the status line
func errorMessage(r *http.Response, responseBodyBytes []byte) string {
	var body struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(responseBodyBytes, &body); err == nil {
		switch message := body.Message.(type) {
		case string:
			if message != "" {
				return message
			}
		case []any:
			parts := []string{}
			for _, part := range message {
				if s, ok := part.(string); ok {
					parts = append(parts, s)
				}
			}
			if 0 < len(parts) {
				return strings.Join(parts, ", ")
			}
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if message := strings.TrimSpace(string(responseBodyBytes)); message != "" {
		return message
	}
	return r.Status
}
