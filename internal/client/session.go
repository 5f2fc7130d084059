package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"kinship/internal/lockout"
	"kinship/internal/models"
	"kinship/internal/notifications"
	"kinship/internal/validation"
)

// State is where a Session sits in the sign-in lifecycle.
type State int

const (
	StateLoading State = iota
	StateSignedOut
	StateSignedIn
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSignedOut:
		return "signed_out"
	case StateSignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// Session is one user's view of the API. Its methods are safe for concurrent use.
type Session struct {
	client *Client
	now    func() time.Time

	mu        sync.RWMutex
	state     State
	token     string
	expiresAt time.Time
	profile   *models.Profile
	pending   string
	tracker   lockout.Tracker
}

// NewSession returns a Session in StateLoading. Call Restore or SignIn to settle it.
func (c *Client) NewSession() *Session {
	return &Session{client: c, now: time.Now, state: StateLoading}
}

type sessionKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the Session stored by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Profile returns the signed-in profile, or nil.
func (s *Session) Profile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt is when the current token stops being accepted.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// PendingVerification returns the email awaiting a signup code, if any.
func (s *Session) PendingVerification() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending, s.pending != ""
}

func (s *Session) signIn(token string, expiresAt time.Time, profile *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSignedIn
	s.token = token
	s.expiresAt = expiresAt
	s.profile = profile
	s.pending = ""
}

func (s *Session) signOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSignedOut
	s.token = ""
	s.expiresAt = time.Time{}
	s.profile = nil
}

type sessionResponse struct {
	Session struct {
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"session"`
	Profile *models.Profile `json:"profile"`
}

// Restore resumes a previously issued token. A rejected token leaves the
// Session signed out without an error; transport failures are returned and
// also leave it signed out.
func (s *Session) Restore(ctx context.Context, token string) error {
	if token == "" {
		s.signOut()
		return nil
	}
	var res sessionResponse
	err := s.client.do(ctx, http.MethodGet, "/api/auth/session", nil, token, nil, &res)
	if err != nil {
		s.signOut()
		var e *Error
		if errors.As(err, &e) && e.Status == http.StatusUnauthorized {
			return nil
		}
		return err
	}
	s.signIn(token, res.Session.ExpiresAt, res.Profile)
	return nil
}

// SignUp registers an account. The user is not signed in; the email becomes
// pending until VerifyOTP succeeds.
func (s *Session) SignUp(ctx context.Context, email, password, fullName, redirectTo string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return validationError(err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return validationError(err)
	}
	if fullName != "" {
		if err := validation.ValidateFullName(fullName); err != nil {
			return validationError(err)
		}
	}

	body := map[string]string{
		"email":       email,
		"password":    password,
		"full_name":   fullName,
		"redirect_to": redirectTo,
	}
	if err := s.client.do(ctx, http.MethodPost, "/api/auth/signup", nil, "", body, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = strings.ToLower(email)
	s.mu.Unlock()
	return nil
}

// VerifyOTP confirms a signup code. It does not sign in.
func (s *Session) VerifyOTP(ctx context.Context, email, code string) error {
	code = strings.TrimSpace(code)
	if err := validation.ValidateVerificationCode(code); err != nil {
		return validationError(err)
	}
	body := map[string]string{"email": strings.TrimSpace(email), "token": code}
	if err := s.client.do(ctx, http.MethodPost, "/api/auth/verify", nil, "", body, nil); err != nil {
		return err
	}

	s.mu.Lock()
	if strings.EqualFold(s.pending, strings.TrimSpace(email)) {
		s.pending = ""
	}
	s.mu.Unlock()
	return nil
}

// Resend asks for a fresh verification code.
func (s *Session) Resend(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return validationError(err)
	}
	return s.client.do(ctx, http.MethodPost, "/api/auth/resend", nil, "", map[string]string{"email": email}, nil)
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile"`
}

func lockedError(remaining time.Duration) *Error {
	return &Error{
		Status:     http.StatusTooManyRequests,
		Code:       models.CodeRateLimited,
		Message:    lockout.CountdownMessage(remaining),
		RetryAfter: remaining,
	}
}

// SignIn exchanges credentials for a session. Rejected credentials count
// toward a local lockout; while locked, no request is sent.
func (s *Session) SignIn(ctx context.Context, email, password string, remember bool) error {
	s.mu.Lock()
	remaining, ok := s.tracker.Allow(s.now())
	s.mu.Unlock()
	if !ok {
		return lockedError(remaining)
	}

	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return validationError(err)
	}
	if password == "" {
		return &Error{Code: models.CodeValidation, Message: "password is required"}
	}

	var res loginResponse
	body := map[string]any{"email": email, "password": password, "remember": remember}
	err := s.client.do(ctx, http.MethodPost, "/api/auth/login", nil, "", body, &res)
	if err == nil {
		s.mu.Lock()
		s.tracker.RecordSuccess()
		s.mu.Unlock()
		s.signIn(res.Token, res.ExpiresAt, res.Profile)
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	switch e.Status {
	case http.StatusTooManyRequests:
		if e.RetryAfter > 0 {
			e.Message = lockout.CountdownMessage(e.RetryAfter)
		}
		return e
	case http.StatusUnauthorized:
		s.mu.Lock()
		locked := s.tracker.RecordFailure(s.now())
		s.mu.Unlock()
		if locked {
			return lockedError(lockout.Window)
		}
	}
	return e
}

// SignOut revokes the token server side. The Session ends signed out even
// when the request fails.
func (s *Session) SignOut(ctx context.Context) error {
	token := s.Token()
	s.signOut()
	if token == "" {
		return nil
	}
	err := s.client.do(ctx, http.MethodPost, "/api/auth/logout", nil, token, nil, nil)
	var e *Error
	if errors.As(err, &e) && e.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

// RequestReset emails a password reset link.
func (s *Session) RequestReset(ctx context.Context, email, redirectTo string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return validationError(err)
	}
	body := map[string]string{"email": email, "redirect_to": redirectTo}
	return s.client.do(ctx, http.MethodPost, "/api/auth/recover", nil, "", body, nil)
}

// ResetPassword sets a new password using the token from a reset link.
func (s *Session) ResetPassword(ctx context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" {
		return &Error{Code: models.CodeValidation, Message: "reset token is required"}
	}
	if err := validation.ValidatePassword(password); err != nil {
		return validationError(err)
	}
	body := map[string]string{"token": token, "password": password}
	return s.client.do(ctx, http.MethodPost, "/api/auth/reset", nil, "", body, nil)
}

// HandleEvent applies a realtime event to the Session. Repeated events are harmless.
func (s *Session) HandleEvent(evt notifications.Event) {
	if evt.Type == notifications.EventSignedOut {
		s.signOut()
	}
}

func (s *Session) authed() (string, error) {
	token := s.Token()
	if token == "" {
		return "", &Error{Status: http.StatusUnauthorized, Code: models.CodeUnauthorized, Message: "not signed in"}
	}
	return token, nil
}

// call runs an authenticated request and signs out locally on 401.
func (s *Session) call(ctx context.Context, method, path string, query map[string][]string, in, out any) error {
	token, err := s.authed()
	if err != nil {
		return err
	}
	err = s.client.do(ctx, method, path, query, token, in, out)
	var e *Error
	if errors.As(err, &e) && e.Status == http.StatusUnauthorized {
		s.signOut()
	}
	return err
}
