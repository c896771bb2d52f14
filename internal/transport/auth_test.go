package transport

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// signedToken builds an HS256 token expiring at the given time.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func foreverToken(t *testing.T) string {
	return signedToken(t, time.Now().Add(24*time.Hour))
}

func TestTokenExpiringSoon(t *testing.T) {
	if tokenExpiringSoon(foreverToken(t)) {
		t.Error("fresh token reported as expiring")
	}
	if !tokenExpiringSoon(signedToken(t, time.Now().Add(-time.Minute))) {
		t.Error("expired token not reported as expiring")
	}
	if !tokenExpiringSoon(signedToken(t, time.Now().Add(10*time.Second))) {
		t.Error("token inside the skew window not reported as expiring")
	}
	if !tokenExpiringSoon("") {
		t.Error("empty token should count as expired")
	}
	// Opaque tokens carry no readable expiry; leave rejection to the server.
	if tokenExpiringSoon("not-a-jwt") {
		t.Error("unparsable token should be passed through")
	}
}

func TestAccessTokenRefreshes(t *testing.T) {
	refreshed := make(chan refreshRequest, 1)

	app := fiber.New()
	app.Post("/api/v1/auth/refresh", func(c *fiber.Ctx) error {
		var req refreshRequest
		if err := c.BodyParser(&req); err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		refreshed <- req
		return c.JSON(refreshResponse{
			AccessToken:  foreverToken(t),
			RefreshToken: "rt2",
		})
	})

	base := startTestAPI(t, app)
	stale := signedToken(t, time.Now().Add(-time.Minute))
	ts := NewTokenSource(base, stale, "rt1")

	access, err := ts.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken returned error: %v", err)
	}
	if access == stale {
		t.Error("AccessToken returned the stale token")
	}

	select {
	case req := <-refreshed:
		if req.RefreshToken != "rt1" {
			t.Errorf("refresh request token = %q, want rt1", req.RefreshToken)
		}
	default:
		t.Fatal("refresh endpoint was never called")
	}

	// Rotated refresh token is kept.
	if ts.refresh != "rt2" {
		t.Errorf("refresh token = %q, want rotated rt2", ts.refresh)
	}

	// Second call reuses the fresh token without another refresh.
	if _, err := ts.AccessToken(context.Background()); err != nil {
		t.Fatalf("second AccessToken returned error: %v", err)
	}
	select {
	case <-refreshed:
		t.Error("fresh token triggered an unnecessary refresh")
	default:
	}
}

func TestAccessTokenNoRefreshAvailable(t *testing.T) {
	ts := NewTokenSource("http://127.0.0.1:0", signedToken(t, time.Now().Add(-time.Minute)), "")
	if _, err := ts.AccessToken(context.Background()); err != ErrNoRefreshToken {
		t.Errorf("AccessToken error = %v, want ErrNoRefreshToken", err)
	}
}
