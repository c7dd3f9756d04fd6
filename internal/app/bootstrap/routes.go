// internal/app/bootstrap/routes.go
package bootstrap

import (
	"crypto/sha256"
	"net/http"
	"strings"

	aboutfeature "github.com/dalemusser/scholarhub/internal/app/features/about"
	approvalsfeature "github.com/dalemusser/scholarhub/internal/app/features/approvals"
	auditlogfeature "github.com/dalemusser/scholarhub/internal/app/features/auditlog"
	consentfeature "github.com/dalemusser/scholarhub/internal/app/features/consent"
	dashboardfeature "github.com/dalemusser/scholarhub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/scholarhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/scholarhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/scholarhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/scholarhub/internal/app/features/logout"
	papersfeature "github.com/dalemusser/scholarhub/internal/app/features/papers"
	passwordresetfeature "github.com/dalemusser/scholarhub/internal/app/features/passwordreset"
	registerfeature "github.com/dalemusser/scholarhub/internal/app/features/register"
	termsfeature "github.com/dalemusser/scholarhub/internal/app/features/terms"
	usersfeature "github.com/dalemusser/scholarhub/internal/app/features/users"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/store/audit"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	awardstore "github.com/dalemusser/scholarhub/internal/app/store/awards"
	citationstore "github.com/dalemusser/scholarhub/internal/app/store/citations"
	flowstore "github.com/dalemusser/scholarhub/internal/app/store/flows"
	keywordstore "github.com/dalemusser/scholarhub/internal/app/store/keywords"
	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/app/system/approval"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	consentsvc "github.com/dalemusser/scholarhub/internal/app/system/consent"
	"github.com/dalemusser/scholarhub/internal/app/system/gates"
	"github.com/dalemusser/scholarhub/internal/app/system/mailer"
	"github.com/dalemusser/scholarhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: MongoDB, Redis, object storage, the mailer and metrics
//   - logger: the fully configured zap.Logger for this app
//
// ScholarHub initializes the template engine, installs the site-wide
// middleware (CSRF, session user, flashes, the approval gate) and mounts
// the feature routers: catalog and paper management, accounts, approvals,
// consent, dashboards, user management and the audit log.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser fetches the account on each request, so role changes,
	// approvals and deactivation take effect immediately.
	db := deps.MongoDatabase
	sessionMgr.SetUserFetcher(accountstore.NewFetcher(db))

	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)

	// Stores and services.
	accounts := accountstore.New(db)
	authors := authorstore.New(db)
	papers := paperstore.New(db)
	cat := catalog.New(papers, authors, accounts, keywordstore.New(db), awardstore.New(db), deps.Cache)

	notices := mailer.Notices{
		Mailer:   deps.Mailer,
		SiteName: appCfg.SiteName,
		BaseURL:  appCfg.BaseURL,
		Logger:   logger,
	}
	flow := accountflow.New(sessionMgr, flowstore.New(db, appCfg.FlowTTL), accounts, notices, deps.Metrics, logger)
	guard := ratelimit.NewGuard()
	approvals := approval.New(accounts, authors, papers, notices, logger)
	consents := consentsvc.New(accounts, deps.Files, logger)

	auditStore := audit.New(db)
	auditLog := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:  auditDestination(appCfg.AuditLogAuth),
		Admin: auditDestination(appCfg.AuditLogAdmin),
	})

	r := chi.NewRouter()

	if !secure {
		// Plain-http dev servers: tell csrf not to require an https Referer.
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, csrf.PlaintextHTTPRequest(req))
			})
		})
	}
	r.Use(csrf.Protect(csrfKey(appCfg),
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName(appCfg.SessionName+"-csrf"),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("csrf check failed",
				zap.String("path", req.URL.Path),
				zap.Error(csrf.FailureReason(req)))
			errorsfeature.RenderForbidden(w, req, "Your form expired. Go back, reload the page and try again.", "/")
		})),
	))

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)
	r.Use(sessionMgr.LoadFlashes)
	r.Use(gates.Approval)

	// Health check and metrics for load balancers and scrapers.
	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.MongoClient, deps.Cache, logger)))
	r.Handle("/metrics", deps.Metrics.Handler())

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Public pages
	r.Mount("/about", aboutfeature.Routes(aboutfeature.NewHandler(logger)))
	r.Mount("/terms", termsfeature.Routes(termsfeature.NewHandler(logger)))

	// Catalog (/, /papers, /authors) and paper management
	papersHandler := papersfeature.NewHandler(cat, citationstore.New(db), deps.Files, sessionMgr, errLog, logger)
	papersHandler.AuditLog = auditLog
	papersfeature.MountRoutes(r, papersHandler, sessionMgr)

	// Authentication
	loginHandler := loginfeature.NewHandler(accounts, flow, guard, errLog, deps.Metrics, logger)
	loginHandler.AuditLog = auditLog
	loginfeature.MountRoutes(r, loginHandler)

	logoutHandler := logoutfeature.NewHandler(flow, logger)
	logoutHandler.AuditLog = auditLog
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	registerHandler := registerfeature.NewHandler(accounts, flow, errLog, deps.Metrics, logger)
	registerHandler.AuditLog = auditLog
	r.Mount("/accounts/register", registerfeature.Routes(registerHandler))

	resetHandler := passwordresetfeature.NewHandler(accounts, flow, guard, errLog, deps.Metrics, logger)
	resetHandler.AuditLog = auditLog
	passwordresetfeature.MountRoutes(r, resetHandler)

	// Approval queue and consent
	approvalsHandler := approvalsfeature.NewHandler(accounts, approvals, consents, sessionMgr, errLog, deps.Metrics, logger)
	approvalsHandler.Catalog = cat
	approvalsHandler.AuditLog = auditLog
	approvalsfeature.MountRoutes(r, approvalsHandler, sessionMgr)

	consentHandler := consentfeature.NewHandler(accounts, consents, sessionMgr, errLog, deps.Metrics, logger)
	consentHandler.AuditLog = auditLog
	consentfeature.MountRoutes(r, consentHandler, sessionMgr)

	// Dashboards and user management
	dashboardfeature.MountRoutes(r, dashboardfeature.NewHandler(cat, errLog, logger), sessionMgr)

	usersHandler := usersfeature.NewHandler(accounts, authors, consents, cat, sessionMgr, errLog, logger)
	usersHandler.AuditLog = auditLog
	r.Mount(usersfeature.ListPath, usersfeature.Routes(usersHandler, sessionMgr))

	r.Mount("/audit", auditlogfeature.Routes(auditlogfeature.NewHandler(auditStore, accounts, errLog, logger), sessionMgr))

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errorsfeature.RenderNotFound(w, req, "That page does not exist.", "/")
	})

	return r, nil
}

// auditDestination treats an unset destination as "all".
func auditDestination(s string) string {
	if s == "" {
		return auditlog.All
	}
	return s
}

// csrfKey returns the configured 32-byte key, or one derived from the
// session key.
func csrfKey(appCfg AppConfig) []byte {
	if k := strings.TrimSpace(appCfg.CSRFKey); len(k) == 32 {
		return []byte(k)
	}
	sum := sha256.Sum256([]byte("csrf:" + appCfg.SessionKey))
	return sum[:]
}
