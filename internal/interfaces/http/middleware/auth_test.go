package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardbase/backend/internal/infrastructure/auth"
	"github.com/shardbase/backend/internal/infrastructure/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret = "test-secret-key-that-is-long-enough"
	testIssuer = "shardbase"
)

func newTestVerifier() *auth.JWTVerifier {
	return auth.NewJWTVerifier(config.JWTConfig{Secret: testSecret, Issuer: testIssuer})
}

func signTestToken(t *testing.T, mutate func(*auth.Claims)) string {
	t.Helper()
	now := time.Now()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID: uuid.New().String(),
		UserID:   uuid.New().String(),
		Username: "tester",
		Roles:    []string{"editor"},
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newAuthRouter(handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(Auth(newTestVerifier()))
	router.GET("/shards", handler)
	router.GET("/health", handler)
	return router
}

func TestAuth(t *testing.T) {
	t.Run("valid token sets the principal", func(t *testing.T) {
		var seenTenant uuid.UUID
		token := signTestToken(t, nil)

		router := newAuthRouter(func(c *gin.Context) {
			principal, ok := GetPrincipal(c)
			require.True(t, ok)
			assert.True(t, principal.HasRole("editor"))
			seenTenant = principal.TenantID
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/shards", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEqual(t, uuid.Nil, seenTenant)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		router := newAuthRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/shards", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "ERR_TOKEN_INVALID")
	})

	t.Run("malformed scheme is rejected", func(t *testing.T) {
		router := newAuthRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/shards", nil)
		req.Header.Set(AuthHeaderKey, "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token reports TOKEN_EXPIRED", func(t *testing.T) {
		token := signTestToken(t, func(c *auth.Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		})
		router := newAuthRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/shards", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "ERR_TOKEN_EXPIRED")
	})

	t.Run("skip paths bypass authentication", func(t *testing.T) {
		router := newAuthRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("token without tenant claim is rejected", func(t *testing.T) {
		token := signTestToken(t, func(c *auth.Claims) { c.TenantID = "" })
		router := newAuthRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/shards", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetPrincipal(t *testing.T) {
	t.Run("returns false when nothing was set", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		_, ok := GetPrincipal(c)
		assert.False(t, ok)
	})
}
