package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"kinship/internal/models"
	"kinship/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) page(t *testing.T, method, path string, form url.Values, token string) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "kinship_session", Value: token})
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(raw)
}

func TestPages_RedirectWhenSignedOut(t *testing.T) {
	ts := newTestServer(t, "web")

	for _, path := range []string{"/", "/profile"} {
		resp, _ := ts.page(t, http.MethodGet, path, nil, "")
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/auth", resp.Header.Get(fiber.HeaderLocation), path)
	}

	resp, _ := ts.page(t, http.MethodGet, "/", nil, "not-a-token")
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
}

func TestPages_AuthForms(t *testing.T) {
	ts := newTestServer(t, "web,signup")

	resp, html := ts.page(t, http.MethodGet, "/auth", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, `action="/auth/login"`)

	resp, html = ts.page(t, http.MethodGet, "/auth?reset_token=abc", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, `action="/auth/reset"`)
	assert.Contains(t, html, `value="abc"`)

	resp, _ = ts.page(t, http.MethodPost, "/auth/signup", url.Values{
		"email": {"web@example.com"}, "password": {strongPassword}, "full_name": {"Web User"},
	}, "")
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderLocation), "mode=verify")

	resp, html = ts.page(t, http.MethodPost, "/auth/login", url.Values{"email": {"web@example.com"}, "password": {strongPassword}}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, html, "Email not confirmed")
	assert.Contains(t, html, `action="/auth/verify"`)

	code, err := ts.mr.Get("otp:code:web@example.com")
	require.NoError(t, err)
	resp, _ = ts.page(t, http.MethodPost, "/auth/verify", url.Values{"email": {"web@example.com"}, "token": {code}}, "")
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	resp, _ = ts.page(t, http.MethodPost, "/auth/login", url.Values{"email": {"web@example.com"}, "password": {strongPassword}}, "")
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == "kinship_session" {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	resp, _ = ts.page(t, http.MethodGet, "/auth", nil, token)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode, "signed-in users skip the auth page")

	resp, _ = ts.page(t, http.MethodPost, "/auth/logout", url.Values{}, token)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	resp, _ = ts.page(t, http.MethodGet, "/", nil, token)
	assert.Equal(t, "/auth", resp.Header.Get(fiber.HeaderLocation), "revoked cookie no longer works")
}

func TestPages_FeedAndProfile(t *testing.T) {
	ts := newTestServer(t, "web")
	me := testutil.CreateMember(t, ts.db, "me")
	pal := testutil.CreateMember(t, ts.db, "pal")
	testutil.CreatePost(t, ts.db, pal.ID, models.PrivacyFriends, "pal only")
	testutil.Befriend(t, ts.db, pal.ID, me.ID, models.FriendshipStatusPending)
	token := tokenFor(t, me)

	resp, html := ts.page(t, http.MethodGet, "/", nil, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotContains(t, html, "pal only")

	resp, _ = ts.page(t, http.MethodPost, "/posts", url.Values{"content": {"<b>hi</b>"}, "privacy": {"public"}}, token)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	resp, html = ts.page(t, http.MethodGet, "/", nil, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "&lt;b&gt;hi&lt;/b&gt;", "post content is escaped")

	resp, html = ts.page(t, http.MethodPost, "/posts", url.Values{"content": {" "}}, token)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, html, `role="alert"`)

	resp, html = ts.page(t, http.MethodGet, "/profile", nil, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "@pal")

	var pending models.Friendship
	require.NoError(t, ts.db.Where("receiver_id = ?", me.ID).First(&pending).Error)
	resp, _ = ts.page(t, http.MethodPost, "/friendships/"+pending.ID.String(), url.Values{"status": {"accepted"}}, token)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	resp, html = ts.page(t, http.MethodGet, "/", nil, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "pal only", "friends-only posts appear once accepted")

	resp, _ = ts.page(t, http.MethodPost, "/profile", url.Values{"username": {"me2"}, "full_name": {"Me Two"}}, token)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	resp, html = ts.page(t, http.MethodGet, "/profile", nil, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "@me2")
}

func TestPages_DisabledByFlag(t *testing.T) {
	ts := newTestServer(t, "signup")

	resp, _ := ts.page(t, http.MethodGet, "/auth", nil, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPages_AuthFormsShareAPIRateLimits(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	ts := newTestServer(t, "web,signup")
	form := url.Values{"email": {"victim@example.com"}}

	for i := 0; i < 3; i++ {
		resp, _ := ts.page(t, http.MethodPost, "/auth/resend", form, "")
		require.Equal(t, fiber.StatusSeeOther, resp.StatusCode, "attempt %d", i+1)
	}
	resp, _ := ts.page(t, http.MethodPost, "/auth/resend", form, "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	// The JSON twin draws from the same budget.
	apiResp, _ := ts.do(t, http.MethodPost, "/api/auth/resend", fiber.Map{"email": "victim@example.com"}, "")
	assert.Equal(t, fiber.StatusTooManyRequests, apiResp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/recover", fiber.Map{"email": "victim@example.com"}, "")
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	for i := 0; i < 2; i++ {
		resp, _ = ts.page(t, http.MethodPost, "/auth/recover", form, "")
		require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	}
	resp, _ = ts.page(t, http.MethodPost, "/auth/recover", form, "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
