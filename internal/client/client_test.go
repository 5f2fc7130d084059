package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"kinship/internal/lockout"
	"kinship/internal/models"
	"kinship/internal/notifications"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	goodToken = "good-token"
	password  = "Sup3r$ecret"
)

var alice = models.Profile{ID: uuid.New(), Username: "alice", FullName: "Alice"}

type fakeAPI struct {
	logins  atomic.Int32
	logouts atomic.Int32
	signups atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token", Code: models.CodeUnauthorized})
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != password {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.CodeUnauthorized})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      goodToken,
			"expires_at": time.Now().Add(time.Hour),
			"profile":    alice,
		})
	})
	mux.HandleFunc("GET /api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			unauthorized(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session": map[string]any{"expires_at": time.Now().Add(time.Hour)},
			"profile": alice,
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logouts.Add(1)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "boom", Code: models.CodeInternal})
	})
	mux.HandleFunc("POST /api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		f.signups.Add(1)
		writeJSON(w, http.StatusCreated, map[string]any{"email": "new@example.com"})
	})
	mux.HandleFunc("POST /api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"verified": true})
	})
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		posts := []models.Post{{ID: uuid.New(), Content: "public", Privacy: models.PrivacyPublic}}
		if r.Header.Get("Authorization") == "Bearer "+goodToken {
			posts = append(posts, models.Post{ID: uuid.New(), Content: "friends", Privacy: models.PrivacyFriends})
		}
		writeJSON(w, http.StatusOK, posts)
	})
	mux.HandleFunc("PUT /api/profiles/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			unauthorized(w)
			return
		}
		var u ProfileUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
		p := alice
		if u.Bio != nil {
			p.Bio = *u.Bio
		}
		writeJSON(w, http.StatusOK, p)
	})
	mux.HandleFunc("GET /api/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			unauthorized(w)
			return
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		msg, err := notifications.Encode(notifications.EventSignedOut, nil)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	return mux
}

func newTestSession(t *testing.T) (*Session, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	ts := httptest.NewServer(api.handler(t))
	t.Cleanup(ts.Close)
	c, err := New(ts.URL)
	require.NoError(t, err)
	return c.NewSession(), api
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
}

func TestSession_StartsLoading(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Equal(t, StateLoading, s.State())
	assert.Equal(t, "loading", s.State().String())
}

func TestSession_Restore(t *testing.T) {
	ctx := context.Background()

	s, _ := newTestSession(t)
	require.NoError(t, s.Restore(ctx, "stale"))
	assert.Equal(t, StateSignedOut, s.State())

	s, _ = newTestSession(t)
	require.NoError(t, s.Restore(ctx, goodToken))
	assert.Equal(t, StateSignedIn, s.State())
	require.NotNil(t, s.Profile())
	assert.Equal(t, "alice", s.Profile().Username)
	assert.False(t, s.ExpiresAt().IsZero())
}

func TestSession_SignInAndOut(t *testing.T) {
	ctx := context.Background()
	s, api := newTestSession(t)

	require.NoError(t, s.SignIn(ctx, "alice@example.com", password, true))
	assert.Equal(t, StateSignedIn, s.State())
	assert.Equal(t, goodToken, s.Token())

	err := s.SignOut(ctx)
	assert.Error(t, err, "server failure is reported")
	assert.Equal(t, StateSignedOut, s.State(), "but the session still ends")
	assert.Empty(t, s.Token())
	assert.Nil(t, s.Profile())
	assert.EqualValues(t, 1, api.logouts.Load())

	require.NoError(t, s.SignOut(ctx))
	assert.EqualValues(t, 1, api.logouts.Load(), "no token, no request")
}

func TestSession_SignInLockout(t *testing.T) {
	ctx := context.Background()
	s, api := newTestSession(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 1; i < lockout.MaxFailures; i++ {
		err := s.SignIn(ctx, "alice@example.com", "wrong", false)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, http.StatusUnauthorized, e.Status)
		assert.Equal(t, GenericMessage, UserMessage(err))
	}

	err := s.SignIn(ctx, "alice@example.com", "wrong", false)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, models.CodeRateLimited, e.Code)
	assert.Equal(t, lockout.CountdownMessage(lockout.Window), UserMessage(err))
	assert.EqualValues(t, lockout.MaxFailures, api.logins.Load())

	now = now.Add(90 * time.Second)
	err = s.SignIn(ctx, "alice@example.com", password, false)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Too many failed attempts. Please try again in 3:30.", e.Message)
	assert.EqualValues(t, lockout.MaxFailures, api.logins.Load(), "locked attempts never reach the server")

	now = now.Add(lockout.Window)
	require.NoError(t, s.SignIn(ctx, "alice@example.com", password, false))
	assert.Equal(t, StateSignedIn, s.State())
}

func TestSession_SignUpValidatesLocally(t *testing.T) {
	ctx := context.Background()
	s, api := newTestSession(t)

	err := s.SignUp(ctx, "not-an-email", password, "New", "")
	require.Error(t, err)
	assert.NotEqual(t, GenericMessage, UserMessage(err))

	err = s.SignUp(ctx, "new@example.com", "short", "New", "")
	require.Error(t, err)
	assert.EqualValues(t, 0, api.signups.Load())

	require.NoError(t, s.SignUp(ctx, "New@Example.com", password, "New", ""))
	email, pending := s.PendingVerification()
	assert.True(t, pending)
	assert.Equal(t, "new@example.com", email)
	assert.NotEqual(t, StateSignedIn, s.State(), "signup does not sign in")

	require.Error(t, s.VerifyOTP(ctx, "new@example.com", "12ab"))
	require.NoError(t, s.VerifyOTP(ctx, "new@example.com", "123456"))
	_, pending = s.PendingVerification()
	assert.False(t, pending)
	assert.NotEqual(t, StateSignedIn, s.State())
}

func TestSession_DataCalls(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	posts, err := s.Feed(ctx, 5, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 1, "signed out sees public only")

	_, err = s.UpdateProfile(ctx, ProfileUpdate{})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusUnauthorized, e.Status)

	require.NoError(t, s.Restore(ctx, goodToken))
	posts, err = s.Feed(ctx, 5, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	bio := "hello"
	p, err := s.UpdateProfile(ctx, ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Bio)
	assert.Equal(t, "hello", s.Profile().Bio)

	_, err = s.CreatePost(ctx, NewPost{Content: "   "})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, models.CodeValidation, e.Code)
}

func TestSession_WatchAppliesSignedOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, _ := newTestSession(t)
	require.NoError(t, s.Restore(ctx, goodToken))

	var seen []string
	err := s.Watch(ctx, func(evt notifications.Event) { seen = append(seen, evt.Type) })
	require.NoError(t, err)
	assert.Equal(t, []string{notifications.EventSignedOut}, seen)
	assert.Equal(t, StateSignedOut, s.State())

	s.HandleEvent(notifications.Event{Type: notifications.EventSignedOut})
	assert.Equal(t, StateSignedOut, s.State(), "repeat events are harmless")
}

func TestContext(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := NewContext(context.Background(), s)
	assert.Same(t, s, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, GenericMessage, UserMessage(errors.New("dial tcp: refused")))
	assert.Equal(t, "bad", UserMessage(&Error{Code: models.CodeValidation, Message: "bad"}))
}
