package server

import (
	"time"

	"kinship/internal/middleware"
	"kinship/internal/models"
	"kinship/internal/service"
	"kinship/internal/session"

	"github.com/gofiber/fiber/v2"
)

type signupRequest struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	FullName   string `json:"full_name" form:"full_name"`
	RedirectTo string `json:"redirect_to" form:"redirect_to"`
}

type verifyRequest struct {
	Email string `json:"email" form:"email"`
	Token string `json:"token" form:"token"`
}

type emailRequest struct {
	Email      string `json:"email" form:"email"`
	RedirectTo string `json:"redirect_to" form:"redirect_to"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Remember bool   `json:"remember" form:"remember"`
}

type resetRequest struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

// loginResponse is returned by a successful sign-in.
type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile"`
}

// Signup handles POST /api/auth/signup
// @Summary Register an account
// @Description Creates the account and profile, then emails a 6-digit verification code. Does not sign in.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string,full_name=string,redirect_to=string} true "Signup request"
// @Success 201 {object} service.RegisterResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	res, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		RedirectTo: req.RedirectTo,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// VerifyOTP handles POST /api/auth/verify
// @Summary Confirm an email address
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,token=string} true "Email and 6-digit code"
// @Success 200 {object} object{verified=bool,email=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/verify [post]
func (s *Server) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	account, err := s.authService.VerifyOTP(c.UserContext(), req.Email, req.Token)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"verified": true, "email": account.Email})
}

// ResendVerification handles POST /api/auth/resend
// @Summary Resend the verification code
// @Description Always answers 202 for well-formed addresses so accounts cannot be enumerated.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Email"
// @Success 202 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/resend [post]
func (s *Server) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If the address needs confirming, a new code is on its way",
	})
}

// Login handles POST /api/auth/login
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string,remember=bool} true "Credentials"
// @Success 200 {object} loginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	res, err := s.authService.SignIn(c.UserContext(), service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.setSessionCookie(c, res.Token, res.Session)
	return c.JSON(loginResponse{
		Token:     res.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Profile:   res.Profile,
	})
}

// Logout handles POST /api/auth/logout
// @Summary Sign out
// @Description Revokes the current token and notifies the account's other clients.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.SignOut(c.UserContext(), currentSession(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	c.ClearCookie(middleware.SessionCookie)
	return c.JSON(fiber.Map{"message": "Signed out"})
}

// RecoverPassword handles POST /api/auth/recover
// @Summary Request a password reset link
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,redirect_to=string} true "Email and optional redirect"
// @Success 202 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/recover [post]
func (s *Server) RecoverPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.authService.RequestPasswordReset(c.UserContext(), req.Email, req.RedirectTo); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If an account exists for that address, a reset link has been sent",
	})
}

// ResetPassword handles POST /api/auth/reset
// @Summary Set a new password with a reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string,password=string} true "Reset token and new password"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/reset [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req resetRequest
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.authService.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// GetSession handles GET /api/auth/session
// @Summary Current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{session=session.Session,profile=models.Profile}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/session [get]
func (s *Server) GetSession(c *fiber.Ctx) error {
	sess := currentSession(c)
	profile, err := s.profileService.GetProfile(c.UserContext(), sess.AccountID, sess.AccountID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"session": sess,
		"profile": profile,
	})
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string, sess *session.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
