package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chronora/internal/auth"
	"chronora/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(tokens *auth.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Discard()
	r := gin.New()
	r.Use(RequestID(), RequestLogger(log))
	api := r.Group("/api", AuthMiddleware(tokens, log))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUserID)})
	})
	api.GET("/admin", RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewManager("secret", time.Hour)
	userToken, err := tokens.GenerateToken("u1", auth.RoleUser)
	require.NoError(t, err)
	adminToken, err := tokens.GenerateToken("a1", auth.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/api/me", "", http.StatusUnauthorized},
		{"not bearer", "/api/me", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/api/me", "Bearer abc", http.StatusUnauthorized},
		{"valid user", "/api/me", "Bearer " + userToken, http.StatusOK},
		{"user on admin route", "/api/admin", "Bearer " + userToken, http.StatusForbidden},
		{"admin on admin route", "/api/admin", "Bearer " + adminToken, http.StatusNoContent},
	}

	router := newRouter(tokens)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := newRouter(auth.NewManager("secret", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
