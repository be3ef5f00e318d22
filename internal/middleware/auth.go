package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/cxr-report-server/internal/domain"
)

// TokenClaims is the JWT payload issued to authenticated API clients.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens. Authentication is
// optional: when no username is configured the middleware passes every
// request through.
type TokenService struct {
	username string
	password string
	secret   []byte
	tokenTTL time.Duration
}

// NewTokenService creates a token service from the auth configuration.
func NewTokenService(config domain.AuthConfig) *TokenService {
	return &TokenService{
		username: config.Username,
		password: config.Password,
		secret:   []byte(config.Secret),
		tokenTTL: config.TokenTTL,
	}
}

// Enabled reports whether credential checks are configured.
func (s *TokenService) Enabled() bool {
	return s.username != ""
}

// Issue validates the credentials and returns a signed token with its
// expiry. Credential comparison is constant-time.
func (s *TokenService) Issue(username, password string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, fmt.Errorf("authentication is not configured")
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		return "", time.Time{}, fmt.Errorf("invalid credentials")
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses the token string and returns its claims.
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token. When the token
// service has no credentials configured the check is skipped entirely.
func RequireAuth(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokens.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	requestID, _ := c.Get("correlation_id")
	id, _ := requestID.(string)
	c.AbortWithStatusJSON(http.StatusUnauthorized, domain.APIError{
		Code:      domain.ErrCodeAuthentication,
		Message:   message,
		Timestamp: time.Now(),
		RequestID: id,
	})
}
