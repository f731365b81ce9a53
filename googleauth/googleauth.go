// Package googleauth turns a Google sign-in (authorization code or Identity
// Services credential) into a verified identity.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"openfashion/metrics"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	ErrNotConfigured = errors.New("google sign-in is not configured")
	ErrNoEmail       = errors.New("email is required from Google")
)

// Identity is what Google tells us about the person signing in.
type Identity struct {
	GoogleID string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

// Verifier is the part of Client the auth handlers depend on.
type Verifier interface {
	Exchange(ctx context.Context, code, redirectURI string) (*Identity, error)
	VerifyCredential(ctx context.Context, credential string) (*Identity, error)
}

type Client struct {
	oauth       oauth2.Config
	userinfoURL string
	validate    func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func New(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userinfoURL: defaultUserinfoURL,
		validate:    idtoken.Validate,
	}
}

// WithEndpoints points the token exchange and userinfo lookups elsewhere.
func (c *Client) WithEndpoints(tokenURL, userinfoURL string) *Client {
	c.oauth.Endpoint = oauth2.Endpoint{AuthURL: google.Endpoint.AuthURL, TokenURL: tokenURL}
	c.userinfoURL = userinfoURL
	return c
}

func (c *Client) Enabled() bool { return c.oauth.ClientID != "" }

// Exchange trades an authorization code for the user's profile.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*Identity, error) {
	if !c.Enabled() || c.oauth.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	cfg := c.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	tok, err := cfg.Exchange(ctx, code)
	metrics.ObserveUpstream("google_oauth", err)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read userinfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo failed: %d, %s", resp.StatusCode, string(data))
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if id.Email == "" {
		return nil, ErrNoEmail
	}
	return &id, nil
}

// VerifyCredential validates a Google ID token issued for our client id.
func (c *Client) VerifyCredential(ctx context.Context, credential string) (*Identity, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	payload, err := c.validate(ctx, credential, c.oauth.ClientID)
	metrics.ObserveUpstream("google_idtoken", err)
	if err != nil {
		return nil, fmt.Errorf("validate credential: %w", err)
	}

	claim := func(key string) string {
		s, _ := payload.Claims[key].(string)
		return s
	}
	id := &Identity{
		GoogleID: payload.Subject,
		Email:    claim("email"),
		Name:     claim("name"),
		Picture:  claim("picture"),
	}
	if id.Email == "" {
		return nil, ErrNoEmail
	}
	return id, nil
}

var usernameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

const (
	maxUsername      = 30
	maxSuffixAttempt = 999
)

// UsernameTaken reports whether a username is already in use.
type UsernameTaken func(ctx context.Context, username string) (bool, error)

// GenerateUsername derives a free username from the display name or, failing
// that, the email prefix. Collisions get a numeric suffix.
func GenerateUsername(ctx context.Context, taken UsernameTaken, email, displayName string, now time.Time) (string, error) {
	base := clean(displayName)
	if base == "" {
		prefix, _, _ := strings.Cut(email, "@")
		base = clean(prefix)
	}
	if len(base) < 3 {
		base += "user"
	}

	candidate := base
	for n := 1; ; n++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		if n > maxSuffixAttempt {
			return "user" + now.UTC().Format("20060102150405"), nil
		}
		candidate = base + strconv.Itoa(n)
	}
}

func clean(s string) string {
	s = usernameChars.ReplaceAllString(strings.ToLower(s), "")
	if len(s) > maxUsername {
		s = s[:maxUsername]
	}
	return s
}
