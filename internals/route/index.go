// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	collectionController "retailku_backend/internals/features/finance/collections/controller"
	authMiddleware "retailku_backend/internals/middlewares/auth"
	routeDetails "retailku_backend/internals/route/details"
)

var startTime time.Time

type Deps struct {
	JWTSecret   string
	Collections *collectionController.CollectionController
}

func SetupRoutes(app *fiber.App, db *gorm.DB, d Deps) {
	startTime = time.Now()

	log.Println("[INFO] Setting up BaseRoutes...")
	BaseRoutes(app, db)

	// ===================== ADMIN (kasir / back office) =====================
	log.Println("[INFO] Setting up ADMIN group (Auth)...")
	admin := app.Group("/api/a",
		authMiddleware.AuthJWT(authMiddleware.AuthJWTOpts{
			Secret:              d.JWTSecret,
			AllowCookieFallback: true,
		}),
	)

	// ===================== MOUNT ROUTES =====================
	log.Println("[INFO] Mounting Finance routes...")
	routeDetails.FinanceAdminRoutes(admin, d.Collections)
}
