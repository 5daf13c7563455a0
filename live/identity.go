package live

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// well-known path of the push stream under the API base
const NotificationStreamPath = "/notifications/stream"

// the query parameter carrying the bearer credential.
// the stream transport cannot set custom headers, so the backend guard
// accepts the token in the query string.
const accessTokenParam = "access_token"

// StreamIdentity is the canonical absolute URL of one logical live
// connection, including the embedded credential. Two identities are the same
// connection iff the canonical URLs are equal; a changed credential is a
// different identity.
//
// comparable
type StreamIdentity struct {
	url string
}

// NewStreamIdentity canonicalizes (api base, stream path, credential) into an
// identity. An empty base or credential yields the zero identity, which the
// registry treats as "do not connect" - the client must never fall back to a
// default host.
func NewStreamIdentity(apiUrl string, streamPath string, byJwt string) StreamIdentity {
	if byJwt == "" {
		return StreamIdentity{}
	}

	absUrl := streamPath
	if !strings.HasPrefix(strings.ToLower(streamPath), "http://") &&
		!strings.HasPrefix(strings.ToLower(streamPath), "https://") {
		if apiUrl == "" {
			return StreamIdentity{}
		}
		base := strings.TrimSuffix(apiUrl, "/")
		if !strings.HasPrefix(streamPath, "/") {
			absUrl = base + "/" + streamPath
		} else {
			absUrl = base + streamPath
		}
	}

	u, err := url.Parse(absUrl)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return StreamIdentity{}
	}
	query := u.Query()
	query.Set(accessTokenParam, byJwt)
	u.RawQuery = query.Encode()

	return StreamIdentity{
		url: u.String(),
	}
}

func (self StreamIdentity) IsZero() bool {
	return self.url == ""
}

func (self StreamIdentity) Url() string {
	return self.url
}

// String hides the embedded credential for logging
func (self StreamIdentity) String() string {
	if self.url == "" {
		return "(disabled)"
	}
	u, err := url.Parse(self.url)
	if err != nil {
		return "(invalid)"
	}
	query := u.Query()
	if query.Has(accessTokenParam) {
		query.Set(accessTokenParam, "...")
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// session claims carried by the marketplace bearer token
type SessionToken struct {
	UserId    int64
	Email     string
	Role      string
	ExpiresAt time.Time
}

func ParseSessionTokenUnverified(byJwt string) (*SessionToken, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(byJwt, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := token.Claims.(gojwt.MapClaims)

	sessionToken := &SessionToken{}

	if sub, ok := claims["sub"]; ok {
		switch v := sub.(type) {
		case float64:
			sessionToken.UserId = int64(v)
		case string:
			// the subject is sometimes issued as a string
			if userId, err := strconv.ParseInt(v, 10, 64); err == nil {
				sessionToken.UserId = userId
			}
		}
	}
	if email, ok := claims["email"].(string); ok {
		sessionToken.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		sessionToken.Role = role
	}
	if exp, ok := claims["exp"].(float64); ok {
		sessionToken.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return sessionToken, nil
}
