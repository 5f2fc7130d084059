package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/url"
	"time"

	"kinship/internal/featureflags"
	"kinship/internal/middleware"
	"kinship/internal/models"
	"kinship/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"auth", "feed", "profile"}

const genericFailure = "Something went wrong. Please try again."

type pageData struct {
	Title      string
	Me         *models.Profile
	Notice     string
	Error      string
	Mode       string
	Email      string
	ResetToken string
	RedirectTo string
	Posts      []*models.Post
	Friends    []*models.Profile
	Requests   []*models.Friendship
	Privacies  []models.Privacy
}

func loadPages() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"when": func(t time.Time) string { return t.Format("Jan 2, 2006 15:04") },
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return pages, nil
}

func (s *Server) setupPages(app *fiber.App) {
	web := s.featureFlags.Require(featureflags.Web)
	signedIn := s.auth.RedirectUnauthenticated("/auth")

	app.Get("/auth", web, s.auth.Optional(), s.AuthPage)
	app.Post("/auth/login", web, s.limits.login, s.LoginForm)
	app.Post("/auth/signup", web, s.featureFlags.Require(featureflags.Signup), s.limits.signup, s.SignupForm)
	app.Post("/auth/verify", web, s.limits.verify, s.VerifyForm)
	app.Post("/auth/resend", web, s.limits.resend, s.ResendForm)
	app.Post("/auth/recover", web, s.limits.recovery, s.RecoverForm)
	app.Post("/auth/reset", web, s.limits.reset, s.ResetForm)
	app.Post("/auth/logout", web, signedIn, s.LogoutForm)

	app.Get("/", web, signedIn, s.FeedPage)
	app.Post("/posts", web, signedIn, s.CreatePostForm)
	app.Get("/profile", web, signedIn, s.ProfilePage)
	app.Post("/profile", web, signedIn, s.UpdateProfileForm)
	app.Post("/friendships/:id", web, signedIn, s.FriendshipForm)
}

func (s *Server) render(c *fiber.Ctx, status int, name string, data pageData) error {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

// userMessage keeps internal details out of pages.
func userMessage(err error) string {
	if models.StatusCode(err) == fiber.StatusInternalServerError {
		return genericFailure
	}
	return err.Error()
}

func authURL(params url.Values) string {
	if len(params) == 0 {
		return "/auth"
	}
	return "/auth?" + params.Encode()
}

func (s *Server) authError(c *fiber.Ctx, mode, email string, err error) error {
	return s.render(c, models.StatusCode(err), "auth", pageData{
		Title: "Sign in",
		Mode:  mode,
		Email: email,
		Error: userMessage(err),
	})
}

// AuthPage serves the combined sign-in, sign-up, verification and reset page.
func (s *Server) AuthPage(c *fiber.Ctx) error {
	resetToken := c.Query("reset_token")
	if requester(c) != uuid.Nil && resetToken == "" {
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	mode := c.Query("mode", "login")
	if resetToken != "" {
		mode = "reset"
	}
	return s.render(c, fiber.StatusOK, "auth", pageData{
		Title:      "Sign in",
		Mode:       mode,
		Email:      c.Query("email"),
		Notice:     c.Query("notice"),
		ResetToken: resetToken,
		RedirectTo: c.Query("redirect_to"),
	})
}

func (s *Server) LoginForm(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return s.authError(c, "login", "", err)
	}
	res, err := s.authService.SignIn(c.UserContext(), service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		if models.HasCode(err, models.CodeUnauthorized) && err.Error() == service.MsgEmailNotConfirmed {
			return s.authError(c, "verify", req.Email, err)
		}
		return s.authError(c, "login", req.Email, err)
	}
	s.setSessionCookie(c, res.Token, res.Session)
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) SignupForm(c *fiber.Ctx) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return s.authError(c, "signup", "", err)
	}
	res, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		RedirectTo: req.RedirectTo,
	})
	if err != nil {
		return s.authError(c, "signup", req.Email, err)
	}

	notice := "We sent a 6-digit code to " + res.Email + "."
	if !res.MailSent {
		notice = "Your account was created but we could not send the code. Use resend to try again."
	}
	return c.Redirect(authURL(url.Values{"mode": {"verify"}, "email": {res.Email}, "notice": {notice}}), fiber.StatusSeeOther)
}

func (s *Server) VerifyForm(c *fiber.Ctx) error {
	var req verifyRequest
	if err := bind(c, &req); err != nil {
		return s.authError(c, "verify", "", err)
	}
	account, err := s.authService.VerifyOTP(c.UserContext(), req.Email, req.Token)
	if err != nil {
		return s.authError(c, "verify", req.Email, err)
	}
	return c.Redirect(authURL(url.Values{"email": {account.Email}, "notice": {"Email confirmed. You can sign in now."}}), fiber.StatusSeeOther)
}

func (s *Server) ResendForm(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return s.authError(c, "verify", "", err)
	}
	if err := s.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return s.authError(c, "verify", req.Email, err)
	}
	return c.Redirect(authURL(url.Values{"mode": {"verify"}, "email": {req.Email}, "notice": {"If the address needs confirming, a new code is on its way."}}), fiber.StatusSeeOther)
}

func (s *Server) RecoverForm(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return s.authError(c, "recover", "", err)
	}
	if err := s.authService.RequestPasswordReset(c.UserContext(), req.Email, req.RedirectTo); err != nil {
		return s.authError(c, "recover", req.Email, err)
	}
	return c.Redirect(authURL(url.Values{"notice": {"If an account exists for that address, a reset link has been sent."}}), fiber.StatusSeeOther)
}

func (s *Server) ResetForm(c *fiber.Ctx) error {
	var req resetRequest
	if err := bind(c, &req); err != nil {
		return s.authError(c, "reset", "", err)
	}
	if err := s.authService.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return s.render(c, models.StatusCode(err), "auth", pageData{
			Title:      "Reset password",
			Mode:       "reset",
			ResetToken: req.Token,
			Error:      userMessage(err),
		})
	}
	return c.Redirect(authURL(url.Values{"notice": {"Password updated. You can sign in now."}}), fiber.StatusSeeOther)
}

func (s *Server) LogoutForm(c *fiber.Ctx) error {
	if err := s.authService.SignOut(c.UserContext(), currentSession(c)); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "sign out failed")
	}
	c.ClearCookie(middleware.SessionCookie)
	return c.Redirect("/auth", fiber.StatusSeeOther)
}

func (s *Server) feedData(c *fiber.Ctx) (pageData, error) {
	ctx := c.UserContext()
	me, err := s.profileService.GetProfile(ctx, requester(c), requester(c))
	if err != nil {
		return pageData{}, err
	}
	page := parsePagination(c, defaultPageLimit)
	posts, err := s.postService.ListPosts(ctx, service.ListPostsInput{Requester: me.ID, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return pageData{}, err
	}
	return pageData{
		Title:     "Feed",
		Me:        me,
		Posts:     posts,
		Privacies: []models.Privacy{models.PrivacyPublic, models.PrivacyFriends, models.PrivacyPrivate},
	}, nil
}

// FeedPage shows the posts visible to the signed-in account.
func (s *Server) FeedPage(c *fiber.Ctx) error {
	data, err := s.feedData(c)
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "feed", data)
}

// CreatePostForm publishes a post and reloads the feed.
func (s *Server) CreatePostForm(c *fiber.Ctx) error {
	var req service.CreatePostInput
	err := bind(c, &req)
	if err == nil {
		_, err = s.postService.CreatePost(c.UserContext(), requester(c), req)
	}
	if err != nil {
		data, ferr := s.feedData(c)
		if ferr != nil {
			return ferr
		}
		data.Error = userMessage(err)
		return s.render(c, models.StatusCode(err), "feed", data)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) profileData(c *fiber.Ctx) (pageData, error) {
	ctx := c.UserContext()
	id := requester(c)
	me, err := s.profileService.GetProfile(ctx, id, id)
	if err != nil {
		return pageData{}, err
	}
	posts, err := s.postService.ListPosts(ctx, service.ListPostsInput{Requester: id, Owner: id, Limit: maxPaginationLimit})
	if err != nil {
		return pageData{}, err
	}
	friends, err := s.friendService.GetFriends(ctx, id)
	if err != nil {
		return pageData{}, err
	}
	pending, err := s.friendService.ListFriendships(ctx, id, models.FriendshipStatusPending)
	if err != nil {
		return pageData{}, err
	}
	incoming := make([]*models.Friendship, 0, len(pending))
	for _, f := range pending {
		if f.ReceiverID == id {
			incoming = append(incoming, f)
		}
	}
	return pageData{
		Title:    "Profile",
		Me:       me,
		Posts:    posts,
		Friends:  friends,
		Requests: incoming,
		Notice:   c.Query("notice"),
	}, nil
}

// ProfilePage shows the signed-in profile with its edit form.
func (s *Server) ProfilePage(c *fiber.Ctx) error {
	data, err := s.profileData(c)
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "profile", data)
}

func (s *Server) profileFormError(c *fiber.Ctx, err error) error {
	data, derr := s.profileData(c)
	if derr != nil {
		return derr
	}
	data.Error = userMessage(err)
	return s.render(c, models.StatusCode(err), "profile", data)
}

func (s *Server) UpdateProfileForm(c *fiber.Ctx) error {
	var req struct {
		Username  string `form:"username"`
		FullName  string `form:"full_name"`
		AvatarURL string `form:"avatar_url"`
		Bio       string `form:"bio"`
	}
	if err := bind(c, &req); err != nil {
		return s.profileFormError(c, err)
	}
	me := requester(c)
	_, err := s.profileService.UpdateProfile(c.UserContext(), me, me, service.UpdateProfileInput{
		Username:  &req.Username,
		FullName:  &req.FullName,
		AvatarURL: &req.AvatarURL,
		Bio:       &req.Bio,
	})
	if err != nil {
		return s.profileFormError(c, err)
	}
	return c.Redirect("/profile?notice="+url.QueryEscape("Profile saved."), fiber.StatusSeeOther)
}

func (s *Server) FriendshipForm(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return s.profileFormError(c, err)
	}
	status := models.FriendshipStatus(c.FormValue("status"))
	if _, err := s.friendService.UpdateStatus(c.UserContext(), requester(c), id, status); err != nil {
		return s.profileFormError(c, err)
	}
	return c.Redirect("/profile", fiber.StatusSeeOther)
}
