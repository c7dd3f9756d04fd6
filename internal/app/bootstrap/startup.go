// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/scholarhub/internal/app/resources"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/authutil"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It loads
// the shared templates, applies timeout overrides and makes sure the
// bootstrap admin account exists.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()
	viewdata.SetSiteName(appCfg.SiteName)

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts overridden from environment",
			zap.Duration("ping", cur.Ping),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("long", cur.Long),
			zap.Duration("mail", cur.Mail))
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return err
		}
	}
	return nil
}

// ensureAdmin creates the admin account, or promotes an existing account
// with that email. Without a configured password a new account gets a
// random one and must go through password reset before signing in.
func ensureAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	hasPassword := password != ""
	if !hasPassword {
		password = uuid.NewString()
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	created, err := accountstore.New(deps.MongoDatabase).EnsureAdmin(ctx, email, hash)
	if err != nil {
		logger.Error("ensure admin failed", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		logger.Info("created admin account", zap.String("email", email), zap.Bool("has_password", hasPassword))
	} else {
		logger.Info("admin account ensured", zap.String("email", email))
	}
	return nil
}
