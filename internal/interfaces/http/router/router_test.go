package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func text(body string, status int) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(status, body) }
}

func TestAPI_Mount(t *testing.T) {
	tests := []struct {
		name    string
		opts    []APIOption
		path    string
		matches bool
	}{
		{"default version", nil, "/api/v1/storefront/ping", true},
		{"custom version", []APIOption{WithVersion("v2")}, "/api/v2/storefront/ping", true},
		{"old version is gone", []APIOption{WithVersion("v2")}, "/api/v1/storefront/ping", false},
		{"no bare prefix", nil, "/storefront/ping", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			NewAPI(engine, tt.opts...).
				Add(NewGroup("/storefront").Handle(http.MethodGet, "/ping", text("pong", http.StatusOK))).
				Mount()

			w := serve(engine, http.MethodGet, tt.path)
			if tt.matches {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, "pong", w.Body.String())
			} else {
				assert.Equal(t, http.StatusNotFound, w.Code)
			}
		})
	}
}

func TestGroup(t *testing.T) {
	t.Run("methods are kept apart", func(t *testing.T) {
		engine := gin.New()
		NewAPI(engine).Add(NewGroup("/imports").
			Handle(http.MethodGet, "", text("list", http.StatusOK)).
			Handle(http.MethodPost, "", text("created", http.StatusCreated)),
		).Mount()

		assert.Equal(t, "list", serve(engine, http.MethodGet, "/api/v1/imports").Body.String())
		assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/imports").Code)
	})

	t.Run("group middleware runs for every route", func(t *testing.T) {
		engine := gin.New()
		stamp := func(c *gin.Context) {
			c.Header("X-Area", "storefront")
			c.Next()
		}
		g := NewGroup("/storefront", stamp).
			Handle(http.MethodGet, "/a", text("a", http.StatusOK)).
			Handle(http.MethodGet, "/b", text("b", http.StatusOK))
		assert.Equal(t, "/storefront", g.Prefix())
		NewAPI(engine).Add(g).Mount()

		assert.Equal(t, "storefront", serve(engine, http.MethodGet, "/api/v1/storefront/a").Header().Get("X-Area"))
		assert.Equal(t, "storefront", serve(engine, http.MethodGet, "/api/v1/storefront/b").Header().Get("X-Area"))
	})

	t.Run("a route guard can stop the chain", func(t *testing.T) {
		engine := gin.New()
		deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusTooManyRequests) }
		NewAPI(engine).Add(NewGroup("/storefront").
			Handle(http.MethodPost, "/import", deny, text("reached", http.StatusOK)),
		).Mount()

		w := serve(engine, http.MethodPost, "/api/v1/storefront/import")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotContains(t, w.Body.String(), "reached")
	})
}
