package live

import (
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/go-playground/assert/v2"
)

func TestStreamIdentity(t *testing.T) {
	a := NewStreamIdentity("https://api.example.com/api", "/notifications/stream", "tok1")
	assert.Equal(t, a.IsZero(), false)
	assert.Equal(t, a.Url(), "https://api.example.com/api/notifications/stream?access_token=tok1")

	// same inputs share one identity
	b := NewStreamIdentity("https://api.example.com/api", "/notifications/stream", "tok1")
	assert.Equal(t, a == b, true)

	// a changed credential is a different identity
	c := NewStreamIdentity("https://api.example.com/api", "/notifications/stream", "tok2")
	assert.Equal(t, a == c, false)

	// base/path joining tolerates missing and doubled slashes
	d := NewStreamIdentity("https://api.example.com/api/", "notifications/stream", "tok1")
	assert.Equal(t, d.Url(), "https://api.example.com/api/notifications/stream?access_token=tok1")

	// an absolute stream url ignores the base
	e := NewStreamIdentity("", "https://other.example.com/stream", "tok1")
	assert.Equal(t, e.Url(), "https://other.example.com/stream?access_token=tok1")
}

func TestStreamIdentityDisabled(t *testing.T) {
	// no api base means do not connect, never the page origin
	assert.Equal(t, NewStreamIdentity("", "/notifications/stream", "tok1").IsZero(), true)

	// no credential means do not connect
	assert.Equal(t, NewStreamIdentity("https://api.example.com", "/notifications/stream", "").IsZero(), true)

	// an unparseable base means do not connect
	assert.Equal(t, NewStreamIdentity("::", "/notifications/stream", "tok1").IsZero(), true)

	assert.Equal(t, StreamIdentity{}.IsZero(), true)
}

func TestStreamIdentityStringRedactsCredential(t *testing.T) {
	identity := NewStreamIdentity("https://api.example.com/api", "/notifications/stream", "secret-token")
	assert.Equal(t, strings.Contains(identity.String(), "secret-token"), false)
	assert.Equal(t, StreamIdentity{}.String(), "(disabled)")
}

func TestParseSessionTokenUnverified(t *testing.T) {
	expiresAt := time.Now().Add(1 * time.Hour).Truncate(time.Second)
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub":   float64(42),
		"email": "cliente@example.com",
		"role":  "CLIENT",
		"exp":   float64(expiresAt.Unix()),
	})
	byJwt, err := token.SignedString([]byte("test-secret"))
	assert.Equal(t, err, nil)

	sessionToken, err := ParseSessionTokenUnverified(byJwt)
	assert.Equal(t, err, nil)
	assert.Equal(t, sessionToken.UserId, int64(42))
	assert.Equal(t, sessionToken.Email, "cliente@example.com")
	assert.Equal(t, sessionToken.Role, "CLIENT")
	assert.Equal(t, sessionToken.ExpiresAt.Unix(), expiresAt.Unix())

	_, err = ParseSessionTokenUnverified("not-a-jwt")
	assert.NotEqual(t, err, nil)
}

func TestParseSessionTokenStringSubject(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub": "42",
	})
	byJwt, err := token.SignedString([]byte("test-secret"))
	assert.Equal(t, err, nil)

	sessionToken, err := ParseSessionTokenUnverified(byJwt)
	assert.Equal(t, err, nil)
	assert.Equal(t, sessionToken.UserId, int64(42))
}
