// file: internals/route/details/finance_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"

	collectionController "retailku_backend/internals/features/finance/collections/controller"
	collectionRoute "retailku_backend/internals/features/finance/collections/route"
)

func FinanceAdminRoutes(r fiber.Router, collections *collectionController.CollectionController) {
	if collections != nil {
		collectionRoute.CollectionAdminRoutes(r, collections)
	}
}
