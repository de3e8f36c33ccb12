package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an issued session token stays valid.
// Long enough to span a full match with room to reconnect.
const DefaultSessionTTL = 24 * time.Hour

var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims is the JWT payload. Subject carries the session id, the
// stable identity matchmaking and rooms key on.
type SessionClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueSession mints a signed session token for sessionID.
func IssueSession(secret []byte, sessionID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseSession validates a token and returns its session id and name.
func ParseSession(secret []byte, token string) (sessionID, name string, err error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", "", ErrInvalidSession
	}
	return claims.Subject, claims.Name, nil
}

// TokenFromRequest pulls the session token from the Authorization header
// or, for websocket dials where headers are awkward, the token query
// parameter.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// SessionHandler issues anonymous session tokens: POST with an optional
// display name, get an identity to connect with.
func SessionHandler(secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if body.Name == "" {
			body.Name = "anon"
		}

		sessionID := uuid.NewString()
		token, err := IssueSession(secret, sessionID, body.Name, ttl)
		if err != nil {
			http.Error(w, "failed to issue session", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token":     token,
			"sessionId": sessionID,
		})
	}
}
