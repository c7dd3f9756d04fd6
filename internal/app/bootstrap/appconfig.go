// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - Request body size limits
//
// AppConfig is where ScholarHub keeps its backends (MongoDB, Redis, object
// storage, SMTP), session settings and the bootstrap admin account.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Redis cache for reference data (blank address disables the cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: scholarhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Login session lifetime
	FlowTTL       time.Duration // Lifetime of registration and reset flows
	CSRFKey       string        // 32-byte CSRF key; derived from SessionKey when blank

	// File storage configuration
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Root directory for the local backend

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageS3Endpoint  string // Custom endpoint for MinIO and other S3-compatible services
	StorageS3AccessKey string
	StorageS3SecretKey string

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (blank logs emails instead of sending)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Base URL for email links (login link in approval emails)
	BaseURL string

	// Site name shown in page headers and emails
	SiteName string

	// Bootstrap admin (created or promoted on startup when set)
	AdminEmail    string
	AdminPassword string

	// Audit log destinations (all, db, log, off)
	AuditLogAuth  string
	AuditLogAdmin string
}
