package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/afrocoder16/mkc-songbook/internal/auth"
	"github.com/afrocoder16/mkc-songbook/internal/config"
	"github.com/afrocoder16/mkc-songbook/internal/handler"
)

func newTestRouter() *echo.Echo {
	e := echo.New()
	cfg := &config.Config{ClientURLs: []string{"http://localhost:5173"}}
	Register(
		e,
		cfg,
		auth.NewJWTService("test-secret"),
		handler.NewAuthHandler(nil),
		handler.NewSongHandler(nil),
		handler.NewAlbumHandler(nil),
		handler.NewUserHandler(nil),
	)
	return e
}

func TestRegister_SecureHeaders(t *testing.T) {
	e := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get(echo.HeaderXFrameOptions))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "1; mode=block", rec.Header().Get(echo.HeaderXXSSProtection))
}

func TestRegister_AdminRoutesAreGated(t *testing.T) {
	e := newTestRouter()

	// No credential at all: the write endpoints refuse before any handler
	// logic can run, so nil services are never touched.
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/song"},
		{http.MethodPut, "/api/song/1"},
		{http.MethodDelete, "/api/song/1"},
		{http.MethodPost, "/api/album"},
		{http.MethodPut, "/api/album/1"},
		{http.MethodDelete, "/api/album/1"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}
