package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCSRFRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireCSRF())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doCSRF(r *gin.Engine, method, cookie, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/x", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: cookie})
	}
	if header != "" {
		req.Header.Set(CSRFHeaderName, header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequireCSRFSafeMethod(t *testing.T) {
	r := newCSRFRouter()
	w := doCSRF(r, http.MethodGet, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireCSRFMissingCookie(t *testing.T) {
	r := newCSRFRouter()
	w := doCSRF(r, http.MethodPost, "", "some-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireCSRFMissingHeader(t *testing.T) {
	r := newCSRFRouter()
	w := doCSRF(r, http.MethodPost, "some-token", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireCSRFMismatch(t *testing.T) {
	r := newCSRFRouter()
	w := doCSRF(r, http.MethodPost, "token-a", "token-b")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireCSRFMatch(t *testing.T) {
	r := newCSRFRouter()
	token, err := NewCSRFToken()
	require.NoError(t, err)
	w := doCSRF(r, http.MethodPost, token, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewCSRFToken(t *testing.T) {
	a, err := NewCSRFToken()
	require.NoError(t, err)
	b, err := NewCSRFToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
