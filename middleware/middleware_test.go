package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"hunt-publish-system/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp() *fiber.App {
	log := logger.NewNop()
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("s3cret", log))
	app.Use(UserContextMiddleware(log))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(UserID(c) + "|" + strings.Join(UserRoles(c), ","))
	})
	app.Post("/mutate", RequireUser(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestGatewayAuth(t *testing.T) {
	app := testApp()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer", "Bearer s3cret", fiber.StatusOK},
		{"raw", "s3cret", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestUserContext(t *testing.T) {
	app := testApp()

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("X-User-ID", "user-9")
	req.Header.Set("X-User-Roles", "editor, ,publisher")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "user-9|editor,publisher", string(body))
}

func TestRequireUser(t *testing.T) {
	app := testApp()

	req := httptest.NewRequest("POST", "/mutate", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/mutate", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("X-User-ID", "user-9")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestGatewayAuthWithoutTokenRefusesAll(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("", logger.NewNop()))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
