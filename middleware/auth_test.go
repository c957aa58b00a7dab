package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"eviction_intake_go/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAdminToken(t *testing.T) {
	e := echo.New()
	hash, err := services.HashAdminToken("clerk-token")
	require.NoError(t, err)

	ok := func(c echo.Context) error {
		return c.String(http.StatusOK, GetActor(c))
	}

	run := func(hash, header string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/cases", nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		return rec, RequireAdminToken(hash)(ok)(e.NewContext(req, rec))
	}

	t.Run("ValidToken", func(t *testing.T) {
		rec, err := run(hash, "Bearer clerk-token")
		assert.NoError(t, err)
		assert.Equal(t, ClerkActor, rec.Body.String())
	})

	tests := []struct {
		name   string
		hash   string
		header string
		code   int
	}{
		{"MissingHeader", hash, "", http.StatusUnauthorized},
		{"WrongScheme", hash, "Basic clerk-token", http.StatusUnauthorized},
		{"WrongToken", hash, "Bearer nope", http.StatusUnauthorized},
		{"NotConfigured", "", "Bearer clerk-token", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(tt.hash, tt.header)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, tt.code, he.Code)
		})
	}
}

func TestGetActorAnonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, "", GetActor(c))
}
