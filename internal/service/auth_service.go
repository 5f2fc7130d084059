package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"kinship/internal/lockout"
	"kinship/internal/mailer"
	"kinship/internal/middleware"
	"kinship/internal/models"
	"kinship/internal/notifications"
	"kinship/internal/observability"
	"kinship/internal/otp"
	"kinship/internal/repository"
	"kinship/internal/session"
	"kinship/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MsgEmailNotConfirmed is the sign-in error for accounts that never verified their email.
const MsgEmailNotConfirmed = "Email not confirmed"

const (
	msgInvalidCredentials = "Invalid login credentials"
	msgInvalidCode        = "Invalid or expired verification code"
	msgInvalidResetToken  = "Invalid or expired reset token"
)

// AuthDeps wires AuthService. Guards default to in-memory ones.
type AuthDeps struct {
	DB          *gorm.DB
	Accounts    repository.AccountRepository
	Profiles    repository.ProfileRepository
	Codes       otp.Store
	Mailer      mailer.Mailer
	Issuer      *session.Issuer
	Revocations session.Revocations
	LoginGuard  lockout.Guard
	OTPGuard    lockout.Guard
	Events      Publisher
	// BaseURL is used to build reset links when the caller gives no redirect.
	BaseURL    string
	BcryptCost int
}

// AuthService implements signup, verification, sign-in and password reset.
type AuthService struct {
	db          *gorm.DB
	accounts    repository.AccountRepository
	profiles    repository.ProfileRepository
	codes       otp.Store
	mail        mailer.Mailer
	issuer      *session.Issuer
	revocations session.Revocations
	loginGuard  lockout.Guard
	otpGuard    lockout.Guard
	events      Publisher
	baseURL     string
	cost        int
	now         func() time.Time
}

func NewAuthService(d AuthDeps) *AuthService {
	s := &AuthService{
		db:          d.DB,
		accounts:    d.Accounts,
		profiles:    d.Profiles,
		codes:       d.Codes,
		mail:        d.Mailer,
		issuer:      d.Issuer,
		revocations: d.Revocations,
		loginGuard:  d.LoginGuard,
		otpGuard:    d.OTPGuard,
		events:      d.Events,
		baseURL:     strings.TrimRight(d.BaseURL, "/"),
		cost:        d.BcryptCost,
		now:         time.Now,
	}
	if s.accounts == nil {
		s.accounts = repository.NewAccountRepository(d.DB)
	}
	if s.profiles == nil {
		s.profiles = repository.NewProfileRepository(d.DB, nil)
	}
	if s.loginGuard == nil {
		s.loginGuard = lockout.NewMemoryGuard()
	}
	if s.otpGuard == nil {
		s.otpGuard = lockout.NewMemoryGuard()
	}
	if s.mail == nil {
		s.mail = mailer.LogMailer{}
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	return s
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email      string
	Password   string
	FullName   string
	RedirectTo string
}

// RegisterResult reports what happened after the account was stored.
type RegisterResult struct {
	Email               string `json:"email"`
	VerificationPending bool   `json:"verification_pending"`
	// MailSent is false when the code could not be delivered; the user can ask for a resend.
	MailSent   bool   `json:"mail_sent"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// Register creates the account and its profile atomically, then emails a
// verification code. The new account is not signed in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := lockout.NormalizeKey(in.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, invalid(err)
	}
	fullName := strings.TrimSpace(in.FullName)
	if err := validation.ValidateFullName(fullName); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidateURL("redirect_to", in.RedirectTo); err != nil {
		return nil, invalid(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account := &models.Account{Email: email, PasswordHash: string(hash)}
		if err := repository.NewAccountRepository(tx).Create(ctx, account); err != nil {
			return err
		}
		profile := &models.Profile{ID: account.ID, Username: email, FullName: fullName}
		return repository.NewProfileRepository(tx, nil).Create(ctx, profile)
	})
	if err != nil {
		observability.RecordAuth("signup", "failure")
		return nil, err
	}
	observability.RecordAuth("signup", "success")

	result := &RegisterResult{Email: email, VerificationPending: true, RedirectTo: in.RedirectTo}
	result.MailSent = s.sendVerification(ctx, email)
	return result, nil
}

func (s *AuthService) sendVerification(ctx context.Context, email string) bool {
	code, err := s.codes.IssueCode(ctx, email)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to issue verification code", slog.String("error", err.Error()))
		return false
	}
	if err := s.mail.SendVerificationCode(ctx, email, code); err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to send verification code", slog.String("error", err.Error()))
		observability.RecordAuth("verification_mail", "failure")
		return false
	}
	return true
}

// VerifyOTP confirms the email address. It does not sign the user in.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*models.Account, error) {
	email = lockout.NormalizeKey(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidateVerificationCode(code); err != nil {
		return nil, invalid(err)
	}
	if err := s.checkGuard(ctx, s.otpGuard, email); err != nil {
		return nil, err
	}

	if err := s.codes.VerifyCode(ctx, email, code); err != nil {
		if errors.Is(err, otp.ErrInvalidCode) {
			observability.RecordAuth("verify", "failure")
			return nil, s.fail(ctx, s.otpGuard, "verify", email, models.NewUnauthorizedError(msgInvalidCode))
		}
		return nil, models.NewInternalError(err)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError(msgInvalidCode)
		}
		return nil, err
	}
	if !account.Confirmed() {
		now := s.now()
		if err := s.accounts.MarkConfirmed(ctx, account.ID, now); err != nil {
			return nil, err
		}
		account.EmailConfirmedAt = &now
	}
	s.resetGuard(ctx, s.otpGuard, email)
	observability.RecordAuth("verify", "success")
	return account, nil
}

// ResendVerification mails a fresh code. Unknown and already confirmed
// addresses are accepted silently so the endpoint cannot probe accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = lockout.NormalizeKey(email)
	if err := validation.ValidateEmail(email); err != nil {
		return invalid(err)
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil
		}
		return err
	}
	if account.Confirmed() {
		return nil
	}
	s.sendVerification(ctx, email)
	return nil
}

// SignInInput is the login form.
type SignInInput struct {
	Email    string
	Password string
	Remember bool
}

// SignInResult carries the issued token and the signed-in profile.
type SignInResult struct {
	Token   string           `json:"token"`
	Session *session.Session `json:"session"`
	Profile *models.Profile  `json:"profile"`
}

// SignIn checks credentials under the login lockout and issues a session token.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	email := lockout.NormalizeKey(in.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid(err)
	}
	if in.Password == "" {
		return nil, models.NewValidationError("Password is required")
	}
	if err := s.checkGuard(ctx, s.loginGuard, email); err != nil {
		observability.RecordAuth("login", "locked")
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !models.HasCode(err, models.CodeNotFound) {
		return nil, err
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(in.Password)) != nil {
		observability.RecordAuth("login", "failure")
		return nil, s.fail(ctx, s.loginGuard, "login", email, models.NewUnauthorizedError(msgInvalidCredentials))
	}
	s.resetGuard(ctx, s.loginGuard, email)

	if !account.Confirmed() {
		observability.RecordAuth("login", "unconfirmed")
		return nil, models.NewUnauthorizedError(MsgEmailNotConfirmed)
	}

	token, sess, err := s.issuer.Issue(account.ID, account.Email, in.Remember)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	profile, err := s.profiles.GetByID(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	observability.RecordAuth("login", "success")
	middleware.Logger.InfoContext(ctx, "User signed in", slog.String("account_id", account.ID.String()))
	return &SignInResult{Token: token, Session: sess, Profile: profile}, nil
}

// SignOut revokes the session's token and tells the account's other clients.
func (s *AuthService) SignOut(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return models.NewUnauthorizedError("Authorization required")
	}
	if s.revocations != nil {
		if err := s.revocations.Revoke(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
			return models.NewInternalError(fmt.Errorf("revoke token: %w", err))
		}
	}
	publish(ctx, s.events, sess.AccountID, notifications.EventSignedOut, map[string]string{
		"account_id": sess.AccountID.String(),
	})
	observability.RecordAuth("logout", "success")
	return nil
}

// RequestPasswordReset mails a single-use reset link. Like resend it never
// reveals whether the address is registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	email = lockout.NormalizeKey(email)
	if err := validation.ValidateEmail(email); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateURL("redirect_to", redirectTo); err != nil {
		return invalid(err)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil
		}
		return err
	}

	token, err := s.codes.IssueResetToken(ctx, email)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to issue reset token", slog.String("error", err.Error()))
		return nil
	}
	if err := s.mail.SendPasswordReset(ctx, email, s.resetLink(redirectTo, token)); err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to send password reset", slog.String("error", err.Error()))
		observability.RecordAuth("reset_mail", "failure")
	}
	return nil
}

func (s *AuthService) resetLink(redirectTo, token string) string {
	base := redirectTo
	if base == "" {
		base = s.baseURL + "/auth"
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("reset_token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ResetPassword consumes a reset token and sets a new password. Following the
// link proves ownership of the address, so it also confirms the email.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" {
		return models.NewValidationError("Reset token is required")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return invalid(err)
	}

	email, err := s.codes.ConsumeResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidToken) {
			observability.RecordAuth("reset", "failure")
			return models.NewUnauthorizedError(msgInvalidResetToken)
		}
		return models.NewInternalError(err)
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return models.NewUnauthorizedError(msgInvalidResetToken)
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("hash password: %w", err))
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		return err
	}
	if !account.Confirmed() {
		if err := s.accounts.MarkConfirmed(ctx, account.ID, s.now()); err != nil {
			return err
		}
	}
	s.resetGuard(ctx, s.loginGuard, email)
	observability.RecordAuth("reset", "success")
	return nil
}

// checkGuard maps an active lockout to RATE_LIMITED. Guard outages fail open.
func (s *AuthService) checkGuard(ctx context.Context, g lockout.Guard, key string) error {
	err := g.Check(ctx, key)
	if err == nil {
		return nil
	}
	var locked *lockout.LockedError
	if errors.As(err, &locked) {
		return models.NewRateLimitedError(locked.Error(), locked.Remaining)
	}
	middleware.Logger.WarnContext(ctx, "Lockout check failed", slog.String("error", err.Error()))
	return nil
}

// fail records a failed attempt and returns cause, or the lockout error when
// this failure started one.
func (s *AuthService) fail(ctx context.Context, g lockout.Guard, operation, key string, cause error) error {
	started, err := g.Fail(ctx, key)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Lockout update failed", slog.String("error", err.Error()))
		return cause
	}
	if !started {
		return cause
	}
	observability.Lockouts.WithLabelValues(operation).Inc()
	middleware.Logger.WarnContext(ctx, "Lockout started", slog.String("operation", operation))
	return models.NewRateLimitedError(lockout.CountdownMessage(lockout.Window), lockout.Window)
}

func (s *AuthService) resetGuard(ctx context.Context, g lockout.Guard, key string) {
	if err := g.Reset(ctx, key); err != nil {
		middleware.Logger.WarnContext(ctx, "Lockout reset failed", slog.String("error", err.Error()))
	}
}
