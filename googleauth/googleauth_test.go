package googleauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func takenSet(names ...string) UsernameTaken {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(_ context.Context, name string) (bool, error) { return set[name], nil }
}

func TestGenerateUsername(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name, email, display, want string
		taken                      []string
	}{
		{name: "display name", email: "a@b.com", display: "Jane Doe!", want: "janedoe"},
		{name: "email prefix", email: "jane.doe+x@b.com", want: "janedoex"},
		{name: "short gets suffix", email: "jd@b.com", want: "jduser"},
		{name: "short display kept", email: "x@b.com", display: "Al", want: "aluser"},
		{name: "collision", email: "jane@b.com", want: "jane2", taken: []string{"jane", "jane1"}},
		{name: "truncated", email: "a@b.com", display: strings.Repeat("x", 40), want: strings.Repeat("x", 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateUsername(ctx, takenSet(tt.taken...), tt.email, tt.display, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateUsernameFallsBackToTimestamp(t *testing.T) {
	always := func(context.Context, string) (bool, error) { return true, nil }
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	got, err := GenerateUsername(context.Background(), always, "jane@b.com", "", now)
	require.NoError(t, err)
	assert.Equal(t, "user20261016093000", got)
}

func TestGenerateUsernameLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := GenerateUsername(context.Background(), func(context.Context, string) (bool, error) { return false, boom }, "a@b.com", "", time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "the-code", r.Form.Get("code"))
			assert.Equal(t, "http://app/callback", r.Form.Get("redirect_uri"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			w.Write([]byte(`{"id":"g-1","email":"jane@example.com","name":"Jane","picture":"http://pic"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New("client", "secret", "").WithEndpoints(srv.URL+"/token", srv.URL+"/userinfo")
	id, err := c.Exchange(context.Background(), "the-code", "http://app/callback")
	require.NoError(t, err)
	assert.Equal(t, &Identity{GoogleID: "g-1", Email: "jane@example.com", Name: "Jane", Picture: "http://pic"}, id)
}

func TestVerifyCredential(t *testing.T) {
	c := New("client", "", "")
	c.validate = func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		assert.Equal(t, "client", audience)
		if token != "good" {
			return nil, errors.New("bad token")
		}
		return &idtoken.Payload{Subject: "g-2", Claims: map[string]interface{}{"email": "k@example.com", "name": "K"}}, nil
	}

	id, err := c.VerifyCredential(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "g-2", id.GoogleID)
	assert.Equal(t, "k@example.com", id.Email)

	_, err = c.VerifyCredential(context.Background(), "forged")
	assert.Error(t, err)
}

func TestNotConfigured(t *testing.T) {
	c := New("", "", "")
	_, err := c.Exchange(context.Background(), "code", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.VerifyCredential(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
