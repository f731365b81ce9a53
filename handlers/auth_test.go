package handlers_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"openfashion/handlers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)

	w := e.json(http.MethodPost, "/api/auth/register", "", gin.H{"email": "t@example.com", "password": "pw", "username": "tester"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reg := decode[handlers.TokenResponse](t, w)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, "bearer", reg.TokenType)
	assert.True(t, reg.NeedsQuiz)
	assert.True(t, reg.IsNewUser)

	quiz, err := e.store.Quizzes.Active(context.Background(), "t@example.com")
	require.NoError(t, err)
	assert.Empty(t, quiz.Responses)

	w = e.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "t@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[handlers.TokenResponse](t, w)
	assert.NotEmpty(t, login.AccessToken)
	assert.False(t, login.IsNewUser)

	w = e.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "t@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")

	form := url.Values{"username": {"t@example.com"}, "password": {"pw"}}
	w = e.request(http.MethodPost, "/api/auth/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.json(http.MethodGet, "/api/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	me := decode[handlers.MeResponse](t, w)
	assert.Equal(t, "tester", me.Username)
	assert.Equal(t, "basic", me.SubscriptionStatus)
	assert.True(t, me.NeedsQuiz)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	e.register("t@example.com", "tester")

	cases := []struct {
		name string
		body gin.H
		want string
	}{
		{"duplicate email", gin.H{"email": "t@example.com", "password": "pw", "username": "other"}, "Email already registered"},
		{"duplicate username", gin.H{"email": "o@example.com", "password": "pw", "username": "tester"}, "Username already taken"},
		{"malformed email", gin.H{"email": "not-an-email", "password": "pw", "username": "fresh"}, "Invalid email format"},
		{"short username", gin.H{"email": "n@example.com", "password": "pw", "username": "ab"}, "Username"},
		{"missing password", gin.H{"email": "n@example.com", "username": "fresh"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.json(http.MethodPost, "/api/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)
		})
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newEnv(t)

	w := e.json(http.MethodGet, "/api/closet/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.json(http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGoogleSignIn(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.json(http.MethodPost, "/api/auth/google", "", gin.H{"credential": "id-token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[handlers.TokenResponse](t, w)
	assert.True(t, first.IsNewUser)
	assert.True(t, first.NeedsQuiz)

	user, err := e.store.Users.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "janedoe", user.Username)
	assert.Equal(t, "google", user.AuthProvider)

	w = e.json(http.MethodPost, "/api/auth/google", "", gin.H{"code": "abc", "redirect_uri": "http://localhost:3000/cb"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[handlers.TokenResponse](t, w).IsNewUser)

	w = e.json(http.MethodPost, "/api/auth/google", "", gin.H{"credential": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.json(http.MethodPost, "/api/auth/google", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleSignInLinksExistingAccount(t *testing.T) {
	e := newEnv(t)
	e.register("jane@example.com", "jane")

	w := e.json(http.MethodPost, "/api/auth/google", "", gin.H{"credential": "id-token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[handlers.TokenResponse](t, w).IsNewUser)

	user, err := e.store.Users.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane", user.Username)
	assert.Equal(t, "g-1", user.GoogleID)
}
