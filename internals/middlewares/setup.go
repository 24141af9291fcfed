package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"retailku_backend/internals/configs"
	"retailku_backend/internals/middlewares/logger"
)

// SetupMiddlewares memasang middleware global (urutan penting: recover paling luar).
func SetupMiddlewares(app *fiber.App, log *zap.Logger) {
	app.Use(RecoveryMiddleware(log))
	app.Use(CorsMiddleware(configs.GetEnvList("CORS_ORIGINS")))
	app.Use(logger.LoggerMiddleware(log))
	app.Use(GlobalRateLimiter(configs.GetEnvInt("RATE_LIMIT_PER_MINUTE", 100)))
}
