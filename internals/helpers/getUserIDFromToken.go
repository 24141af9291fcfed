package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals yang diisi middleware AuthJWT
const (
	LocUserID     = "user_id"
	LocLocationID = "location_id"
	LocRoles      = "roles"
)

// Ambil user_id dari c.Locals("user_id")
// Return 401 kalau belum login, 400 kalau formatnya tidak valid.
func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	var s string
	switch t := c.Locals(LocUserID).(type) {
	case nil:
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "User belum login")
	case uuid.UUID:
		if t == uuid.Nil {
			return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "User belum login")
		}
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "User ID pada token tidak valid")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "User belum login")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "User ID pada token tidak valid")
	}
	return id, nil
}

// Lokasi (toko/outlet) aktif dari token. Header X-Location-ID hanya dipakai
// kalau token tidak membawa lokasi.
func GetLocationIDFromToken(c *fiber.Ctx) (string, error) {
	if v, ok := c.Locals(LocLocationID).(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	if h := strings.TrimSpace(c.Get("X-Location-ID")); h != "" {
		return h, nil
	}
	return "", fiber.NewError(fiber.StatusBadRequest, "Lokasi aktif tidak ditemukan pada token")
}
