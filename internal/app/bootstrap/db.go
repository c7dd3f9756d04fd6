// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/scholarhub/internal/app/system/cache"
	"github.com/dalemusser/scholarhub/internal/app/system/indexes"
	"github.com/dalemusser/scholarhub/internal/app/system/mailer"
	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens MongoDB, the optional Redis cache and the object store,
// and builds the mailer and metrics registry the handlers share.
//
// MongoDB and the object store are required; a failure there aborts
// startup. Redis is optional: when it is unreachable the app logs a warning
// and runs uncached.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	deps := DBDeps{Metrics: metrics.New()}

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return deps, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return deps, fmt.Errorf("ping mongo: %w", err)
	}
	deps.MongoClient = client
	deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	if appCfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable; running without cache",
				zap.String("addr", appCfg.RedisAddr), zap.Error(err))
			_ = rdb.Close()
		} else {
			deps.Redis = rdb
			logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr))
		}
	}

	deps.Cache = cache.New(deps.Redis, appCfg.CacheTTL, logger, deps.Metrics)

	files, err := openObjectStore(ctx, appCfg)
	if err != nil {
		_ = client.Disconnect(context.Background())
		if deps.Redis != nil {
			_ = deps.Redis.Close()
		}
		return deps, err
	}
	deps.Files = files
	logger.Info("object storage ready", zap.String("type", appCfg.StorageType))

	deps.Mailer = mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger, deps.Metrics)
	if !deps.Mailer.Enabled() {
		logger.Warn("mail_smtp_host is blank; emails will be logged, not sent")
	}

	return deps, nil
}

func openObjectStore(ctx context.Context, appCfg AppConfig) (storage.Store, error) {
	if appCfg.StorageType == "s3" {
		s, err := storage.NewS3(ctx, storage.S3Config{
			Region:          appCfg.StorageS3Region,
			Bucket:          appCfg.StorageS3Bucket,
			Prefix:          appCfg.StorageS3Prefix,
			Endpoint:        appCfg.StorageS3Endpoint,
			UsePathStyle:    appCfg.StorageS3Endpoint != "",
			AccessKeyID:     appCfg.StorageS3AccessKey,
			SecretAccessKey: appCfg.StorageS3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 storage: %w", err)
		}
		return s, nil
	}
	l, err := storage.NewLocal(storage.LocalConfig{BasePath: appCfg.StorageLocalPath})
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	return l, nil
}

// EnsureSchema installs collection validators and indexes. Both steps are
// idempotent and run on every start.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
