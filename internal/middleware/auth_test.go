package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Longt00/company-sub000/internal/data/repos/testutil"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	am := NewAuthMiddleware(testutil.Logger(t), testSecret)
	router := gin.New()
	router.GET("/probe", am.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func doGet(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	callerID := uuid.New()

	var seen *uuid.UUID
	am := NewAuthMiddleware(testutil.Logger(t), testSecret)
	router := gin.New()
	router.GET("/probe", am.RequireAuth(), func(c *gin.Context) {
		seen = CallerID(c)
		c.Status(http.StatusNoContent)
	})

	token := signToken(t, testSecret, callerID.String())
	rec := doGet(router, "/probe", "Bearer "+token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}
	if seen == nil || *seen != callerID {
		t.Fatalf("caller id = %v, want %s", seen, callerID)
	}

	// Same token through the query parameter.
	seen = nil
	rec = doGet(router, "/probe?token="+token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("query token: status = %d, want 204", rec.Code)
	}
	if seen == nil || *seen != callerID {
		t.Fatalf("query token: caller id = %v, want %s", seen, callerID)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	router := authRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{"no token", ""},
		{"malformed header", "Bearer"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", uuid.NewString())},
		{"non uuid subject", "Bearer " + signToken(t, testSecret, "admin")},
	}
	for _, tc := range cases {
		rec := doGet(router, "/probe", tc.header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", tc.name, rec.Code)
		}
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	router := authRouter(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	rec := doGet(router, "/probe", "Bearer "+signed)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
