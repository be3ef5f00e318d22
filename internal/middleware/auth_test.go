package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxr-report-server/internal/domain"
)

func testAuthConfig() domain.AuthConfig {
	return domain.AuthConfig{
		Username: "admin",
		Password: "s3cret",
		Secret:   "signing-secret",
		TokenTTL: time.Hour,
	}
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	tokens := NewTokenService(testAuthConfig())
	require.True(t, tokens.Enabled())

	token, expiresAt, err := tokens.Issue("admin", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

func TestTokenService_Issue_RejectsBadCredentials(t *testing.T) {
	tokens := NewTokenService(testAuthConfig())

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"wrong username", "root", "s3cret"},
		{"both empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tokens.Issue(tt.username, tt.password)
			assert.Error(t, err)
		})
	}
}

func TestTokenService_DisabledNeverIssues(t *testing.T) {
	tokens := NewTokenService(domain.AuthConfig{})
	require.False(t, tokens.Enabled())

	_, _, err := tokens.Issue("", "")
	assert.Error(t, err)
}

func TestTokenService_Verify_RejectsTamperedToken(t *testing.T) {
	tokens := NewTokenService(testAuthConfig())
	token, _, err := tokens.Issue("admin", "s3cret")
	require.NoError(t, err)

	other := NewTokenService(domain.AuthConfig{
		Username: "admin",
		Password: "s3cret",
		Secret:   "different-secret",
		TokenTTL: time.Hour,
	})
	_, err = other.Verify(token)
	assert.Error(t, err)

	_, err = tokens.Verify(token + "x")
	assert.Error(t, err)
}

func TestTokenService_Verify_RejectsExpiredToken(t *testing.T) {
	expired := NewTokenService(domain.AuthConfig{
		Username: "admin",
		Password: "s3cret",
		Secret:   "signing-secret",
		TokenTTL: -time.Minute,
	})
	token, _, err := expired.Issue("admin", "s3cret")
	require.NoError(t, err)

	_, err = expired.Verify(token)
	assert.Error(t, err)
}

func authTestRouter(tokens *TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationID())
	router.Use(RequireAuth(tokens))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
	})
	return router
}

func TestRequireAuth(t *testing.T) {
	tokens := NewTokenService(testAuthConfig())
	router := authTestRouter(tokens)

	token, _, err := tokens.Issue("admin", "s3cret")
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not a bearer token", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireAuth_DisabledPassesThrough(t *testing.T) {
	router := authTestRouter(NewTokenService(domain.AuthConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
