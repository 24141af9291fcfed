package dbtime

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func locationFor(t *testing.T, tz string) string {
	t.Helper()
	app := fiber.New()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		if tz != "" {
			c.Locals(LocStoreTimezone, tz)
		}
		got = GetStoreLocation(c).String()
		// second call must hit the cached *time.Location
		assert.Equal(t, got, GetStoreLocation(c).String())
		return nil
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	return got
}

func TestGetStoreLocation(t *testing.T) {
	if _, err := time.LoadLocation(DefaultTimezone); err != nil {
		t.Skip("tzdata not available")
	}
	assert.Equal(t, "Asia/Makassar", locationFor(t, "Asia/Makassar"))
	assert.Equal(t, DefaultTimezone, locationFor(t, "Mars/Olympus"))
	assert.Equal(t, DefaultTimezone, locationFor(t, ""))
	assert.Equal(t, time.UTC, GetStoreLocation(nil))
}
