package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/carelink/carelink_backend/config"
)

// NewLimiterWithRedis keeps a sliding window per client IP in Redis so the
// limit holds across replicas.
func NewLimiterWithRedis(rdb *redis.Client, cfg config.RateLimitConfig) fiber.Handler {
	storage := fiberredis.NewFromConnection(rdb)

	maxRequests := cfg.RequestsPerWindow
	if maxRequests <= 0 {
		maxRequests = 20
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = 30 * time.Second
	}

	return limiter.New(limiter.Config{
		Storage: storage,

		// sliding window
		Max:               maxRequests,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c fiber.Ctx) string {
			return "carelink:limiter:" + c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}
