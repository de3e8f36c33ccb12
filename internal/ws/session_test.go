package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestSessionRoundTrip(t *testing.T) {
	token, err := IssueSession(testSecret, "sess-1", "ada", time.Minute)
	require.NoError(t, err)

	sessionID, name, err := ParseSession(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sessionID)
	assert.Equal(t, "ada", name)
}

func TestSessionRejectsWrongSecret(t *testing.T) {
	token, err := IssueSession(testSecret, "sess-1", "ada", time.Minute)
	require.NoError(t, err)

	_, _, err = ParseSession([]byte("other-secret"), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionRejectsExpired(t *testing.T) {
	token, err := IssueSession(testSecret, "sess-1", "ada", -time.Minute)
	require.NoError(t, err)

	_, _, err = ParseSession(testSecret, token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionRejectsGarbage(t *testing.T) {
	_, _, err := ParseSession(testSecret, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=qtok", nil)
	assert.Equal(t, "qtok", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer htok")
	assert.Equal(t, "htok", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	assert.Empty(t, TokenFromRequest(r))
}

func TestSessionHandlerIssuesParseableToken(t *testing.T) {
	h := SessionHandler(testSecret, time.Minute)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("POST", "/session", strings.NewReader(`{"name":"grace"}`)))
	require.Equal(t, 200, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	sessionID, name, err := ParseSession(testSecret, resp["token"])
	require.NoError(t, err)
	assert.Equal(t, resp["sessionId"], sessionID)
	assert.Equal(t, "grace", name)
}

func TestSessionHandlerRejectsGet(t *testing.T) {
	h := SessionHandler(testSecret, time.Minute)
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/session", nil))
	assert.Equal(t, 405, w.Code)
}
