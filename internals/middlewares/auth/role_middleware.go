package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	helper "retailku_backend/internals/helpers"
)

// RequireRoles lolos kalau user punya salah satu role yang diizinkan.
// Dipasang setelah AuthJWT.
func RequireRoles(customForbiddenMessage string, allowedRoles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	if customForbiddenMessage == "" {
		customForbiddenMessage = "Forbidden: you are not authorized to access this resource"
	}

	return func(c *fiber.Ctx) error {
		roles, ok := c.Locals(helper.LocRoles).([]string)
		if !ok {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized: missing role information")
		}
		for _, r := range roles {
			if _, ok := allowed[r]; ok {
				return c.Next()
			}
		}
		return helper.JsonError(c, fiber.StatusForbidden, customForbiddenMessage)
	}
}
