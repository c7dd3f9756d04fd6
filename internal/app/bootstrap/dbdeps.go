// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/scholarhub/internal/app/system/cache"
	"github.com/dalemusser/scholarhub/internal/app/system/mailer"
	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is nil when no redis_addr is configured or it was unreachable;
	// Cache is then a pass-through.
	Redis *redis.Client
	Cache *cache.Cache

	// Files holds paper PDFs and consent forms.
	Files storage.Store

	// Mailer sends over SMTP, or logs when no host is configured. Shutdown
	// waits for its queued sends.
	Mailer *mailer.Mailer

	Metrics *metrics.Metrics
}
