package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins...))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func corsRequest(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	req.Header.Set("Origin", origin)
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_AnyOriginNeverAllowsCredentials(t *testing.T) {
	r := corsRouter()

	w := corsRequest(r, http.MethodGet, "https://evil.example")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_ListedOrigin(t *testing.T) {
	r := corsRouter("https://map.vespawatch.be/")

	w := corsRequest(r, http.MethodGet, "https://map.vespawatch.be")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://map.vespawatch.be", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = corsRequest(r, http.MethodOptions, "https://map.vespawatch.be")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORS_UnlistedOriginIsRejected(t *testing.T) {
	r := corsRouter("https://map.vespawatch.be")

	w := corsRequest(r, http.MethodGet, "https://evil.example")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
