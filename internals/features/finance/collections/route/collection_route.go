package route

import (
	"github.com/gofiber/fiber/v2"

	collectionController "retailku_backend/internals/features/finance/collections/controller"
	"retailku_backend/internals/middlewares"
	authMiddleware "retailku_backend/internals/middlewares/auth"
)

/*
Admin routes: Collections (payment / refund allocation)
Contoh mount: CollectionAdminRoutes(app.Group("/api/a"), ctl)
Final paths:
- /api/a/collections/methods
- /api/a/collections/sessions ...
- /api/a/collections/orphans
*/
func CollectionAdminRoutes(r fiber.Router, ctl *collectionController.CollectionController) {
	col := r.Group("/collections",
		authMiddleware.RequireRoles("", "cashier", "admin", "owner"),
	)

	col.Get("/methods", ctl.ListMethods)

	sess := col.Group("/sessions")
	sess.Post("/", ctl.OpenSession)
	sess.Get("/:id", ctl.GetSession)
	sess.Delete("/:id", ctl.AbandonSession)
	sess.Post("/:id/entries", ctl.AddEntry)
	sess.Patch("/:id/entries/:local_id", ctl.MutateAmount)
	sess.Delete("/:id/entries/:local_id", ctl.RemoveEntry)
	sess.Post("/:id/complete", middlewares.CompletionRateLimiter(), ctl.Complete)

	// rekonsiliasi voucher yang sudah dibuat tapi submit-nya gagal
	col.Get("/orphans",
		authMiddleware.RequireRoles("", "admin", "owner"),
		ctl.ListOrphans,
	)
}
