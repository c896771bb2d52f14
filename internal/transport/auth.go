package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/notDroid/HarmonyChat/internal/httpx"
)

// expirySkew refreshes slightly early so a token never dies mid-flight.
const expirySkew = 30 * time.Second

var ErrNoRefreshToken = errors.New("access token expired and no refresh token available")

// TokenSource holds the session's bearer tokens and refreshes the
// access token before it expires. Expiry is read from the JWT claims
// without verifying the signature; verification is the server's job.
type TokenSource struct {
	baseURL string

	mu      sync.Mutex
	access  string
	refresh string
}

// NewTokenSource creates a token source. refresh may be empty, in which
// case the access token is used until the server rejects it.
func NewTokenSource(baseURL, access, refresh string) *TokenSource {
	return &TokenSource{baseURL: baseURL, access: access, refresh: refresh}
}

// AccessToken returns a usable access token, refreshing first when the
// current one is expired or about to.
func (ts *TokenSource) AccessToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !tokenExpiringSoon(ts.access) {
		return ts.access, nil
	}
	if ts.refresh == "" {
		return "", ErrNoRefreshToken
	}
	if err := ts.refreshLocked(ctx); err != nil {
		return "", err
	}
	return ts.access, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (ts *TokenSource) refreshLocked(ctx context.Context) error {
	timeout := defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(ts.baseURL + "/api/v1/auth/refresh").
		JSON(refreshRequest{RefreshToken: ts.refresh}).
		Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("refresh token request failed: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return httpx.DecodeError(code, body)
	}

	var resp refreshResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if resp.AccessToken == "" {
		return errors.New("refresh response missing access token")
	}
	ts.access = resp.AccessToken
	if resp.RefreshToken != "" {
		ts.refresh = resp.RefreshToken
	}
	return nil
}

// tokenExpiringSoon parses the JWT exp claim without verification. A
// token with no parsable expiry is assumed valid and left to the server
// to reject.
func tokenExpiringSoon(token string) bool {
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < expirySkew
}
