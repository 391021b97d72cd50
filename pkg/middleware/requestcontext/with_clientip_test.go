package requestcontext

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveClientIP(t *testing.T) {
	trusted, err := newTrustedProxy([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	testCases := []struct {
		name      string
		header    string
		forwarded []string
		trusted   trustedProxy
		ip        string
		ok        bool
	}{
		{name: "trusted_header", header: "203.0.113.9", forwarded: []string{"198.51.100.1"}, ip: "203.0.113.9", ok: true},
		{name: "invalid_header", header: "unknown", forwarded: []string{"198.51.100.1"}, trusted: trusted, ip: "198.51.100.1", ok: true},
		{name: "not_proxied", ip: "", ok: false},
		{name: "walks_back_past_proxies", forwarded: []string{"1.1.1.1", "198.51.100.1", "10.0.0.2"}, trusted: trusted, ip: "198.51.100.1", ok: true},
		{name: "all_trusted", forwarded: []string{"10.0.0.3", "10.0.0.2"}, trusted: trusted, ip: "10.0.0.3", ok: true},
		{name: "no_trusted_proxies", forwarded: []string{"198.51.100.1", "10.0.0.2"}, ip: "198.51.100.1", ok: false},
		{name: "malformed_entries_dropped", forwarded: []string{"bogus", "198.51.100.1"}, trusted: trusted, ip: "198.51.100.1", ok: true},
		{name: "only_malformed_entries", forwarded: []string{"bogus"}, trusted: trusted, ip: "", ok: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ip, ok := resolveClientIP(tc.header, tc.forwarded, tc.trusted)
			assert.Equal(t, tc.ip, ip)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestWithClientIP(t *testing.T) {
	newApp := func(config WithClientIPConfig) *fiber.App {
		app := fiber.New()
		app.Use(New(WithClientIP(config)))
		app.Get("/", func(c *fiber.Ctx) error {
			return c.SendString(GetClientIP(c.UserContext()))
		})
		return app
	}
	do := func(t *testing.T, app *fiber.App, headers map[string]string) (int, string) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	t.Run("trusted_header", func(t *testing.T) {
		app := newApp(WithClientIPConfig{TrustedHeader: "X-Real-IP"})
		status, body := do(t, app, map[string]string{"X-Real-IP": "203.0.113.9", "X-Forwarded-For": "198.51.100.1"})
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "203.0.113.9", body)
	})

	t.Run("trusted_proxies", func(t *testing.T) {
		app := newApp(WithClientIPConfig{TrustedProxiesIP: []string{"10.0.0.0/8"}})
		_, body := do(t, app, map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.1, 10.0.0.2"})
		assert.Equal(t, "198.51.100.1", body)
	})

	t.Run("reject_malformed", func(t *testing.T) {
		app := newApp(WithClientIPConfig{EnableRejectMalformedRequest: true})
		status, _ := do(t, app, map[string]string{"X-Forwarded-For": "198.51.100.1"})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("fallback_to_first_forwarded", func(t *testing.T) {
		app := newApp(WithClientIPConfig{})
		_, body := do(t, app, map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"})
		assert.Equal(t, "198.51.100.1", body)
	})
}

func TestWithClientIPConfigValidate(t *testing.T) {
	assert.NoError(t, WithClientIPConfig{TrustedProxiesIP: []string{"10.0.0.0/8", "::1/128"}}.Validate())
	assert.Error(t, WithClientIPConfig{TrustedProxiesIP: []string{"10.0.0.0"}}.Validate())
}
