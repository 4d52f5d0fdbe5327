package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nexusworks/payments/config"
	"github.com/stretchr/testify/assert"
)

func newAuthedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecretKeyAuthMiddleware("/webhooks/"))
	handler := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/payments/pay_1", handler)
	r.POST("/webhooks/card", handler)
	return r
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{SecretKey: "s3cret"},
	})
	router := newAuthedRouter()

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing key", "/payments/pay_1", "", http.StatusUnauthorized},
		{"wrong key", "/payments/pay_1", "nope", http.StatusUnauthorized},
		{"valid key", "/payments/pay_1", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(KeyHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWebhookPathExemptFromSecretKey(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{SecretKey: "s3cret"},
	})
	router := newAuthedRouter()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/card", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
