// file: internals/helpers/dbtime/time_helper.go
package dbtime

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Nama locals mengikuti yg di-set di middleware AuthJWT
const (
	LocStoreTimezone = "store_timezone" // string, misal "Asia/Jakarta"
	LocStoreLoc      = "store_loc"      // *time.Location
)

const DefaultTimezone = "Asia/Jakarta"

// Ambil *time.Location toko dari token:
// 1) Prioritas: c.Locals("store_loc") yang sudah di-cache
// 2) Kalau belum ada: baca "store_timezone" (string) lalu LoadLocation
// 3) Fallback: Asia/Jakarta
// 4) Fallback terakhir: time.UTC
func GetStoreLocation(c *fiber.Ctx) *time.Location {
	if c == nil {
		return time.UTC
	}

	if v := c.Locals(LocStoreLoc); v != nil {
		if loc, ok := v.(*time.Location); ok && loc != nil {
			return loc
		}
	}

	if v := c.Locals(LocStoreTimezone); v != nil {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			if loc, err := time.LoadLocation(strings.TrimSpace(s)); err == nil {
				// cache ke locals biar next call lebih murah
				c.Locals(LocStoreLoc, loc)
				return loc
			}
		}
	}

	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		c.Locals(LocStoreLoc, loc)
		return loc
	}
	return time.UTC
}

// Helper kecil untuk "sekarang di timezone toko"
func NowInStore(c *fiber.Ctx) time.Time {
	return time.Now().In(GetStoreLocation(c))
}
