package bootstrap

import (
	"testing"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/authutil"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureAdmin_CreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	require.NoError(t, ensureAdmin(ctx, deps, "admin@test.com", "a-strong-passphrase", testLogger()))

	got, err := accountstore.New(db).GetByEmail(ctx, "admin@test.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.True(t, got.Active)
	assert.True(t, got.Profile.Approved)
	assert.True(t, got.Profile.EmailVerified)
	assert.True(t, authutil.CheckPassword(got.PasswordHash, "a-strong-passphrase"))
}

func TestEnsureAdmin_WithoutPasswordIsUnusable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	require.NoError(t, ensureAdmin(ctx, DBDeps{MongoDatabase: db}, "admin@test.com", "", testLogger()))

	got, err := accountstore.New(db).GetByEmail(ctx, "admin@test.com")
	require.NoError(t, err)
	assert.NotEmpty(t, got.PasswordHash)
	assert.False(t, authutil.CheckPassword(got.PasswordHash, ""))
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	existing := fx.CreateAccount(ctx, "teacher@test.com", models.RoleNonResearchTeacher)

	require.NoError(t, ensureAdmin(ctx, DBDeps{MongoDatabase: db}, "teacher@test.com", "a-new-passphrase", testLogger()))

	got, err := accountstore.New(db).GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.True(t, got.Profile.Approved)
	assert.Equal(t, existing.PasswordHash, got.PasswordHash, "promotion keeps the existing password")
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	require.NoError(t, ensureAdmin(ctx, deps, "admin@test.com", "a-strong-passphrase", testLogger()))
	require.NoError(t, ensureAdmin(ctx, deps, "admin@test.com", "a-strong-passphrase", testLogger()))

	n, err := db.Collection("accounts").CountDocuments(ctx, map[string]any{"role": string(models.RoleAdmin)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:         "mongodb://localhost:27017",
		StorageType:      "local",
		StorageLocalPath: "./uploads",
		SessionKey:       "0123456789abcdef0123456789abcdef",
	}
}

func TestValidateConfig(t *testing.T) {
	dev := &config.CoreConfig{Env: "dev"}
	prod := &config.CoreConfig{Env: "prod"}

	tests := []struct {
		name    string
		core    *config.CoreConfig
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid local", dev, func(*AppConfig) {}, false},
		{"unknown storage", dev, func(c *AppConfig) { c.StorageType = "ftp" }, true},
		{"local without path", dev, func(c *AppConfig) { c.StorageLocalPath = " " }, true},
		{"s3 without bucket", dev, func(c *AppConfig) { c.StorageType = "s3" }, true},
		{"s3 with bucket", dev, func(c *AppConfig) { c.StorageType = "s3"; c.StorageS3Bucket = "papers" }, false},
		{"s3 half credentials", dev, func(c *AppConfig) {
			c.StorageType = "s3"
			c.StorageS3Bucket = "papers"
			c.StorageS3AccessKey = "key"
		}, true},
		{"short csrf key", dev, func(c *AppConfig) { c.CSRFKey = "short" }, true},
		{"bad admin email", dev, func(c *AppConfig) { c.AdminEmail = "not-an-email" }, true},
		{"weak admin password", dev, func(c *AppConfig) {
			c.AdminEmail = "admin@example.com"
			c.AdminPassword = "password"
		}, true},
		{"bad audit destination", dev, func(c *AppConfig) { c.AuditLogAdmin = "syslog" }, true},
		{"audit off", dev, func(c *AppConfig) { c.AuditLogAuth = "off" }, false},
		{"dev session key in prod", prod, func(c *AppConfig) { c.SessionKey = "dev-only-change-me" }, true},
		{"dev session key in dev", dev, func(c *AppConfig) { c.SessionKey = "dev-only-change-me" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := ValidateConfig(tc.core, cfg, testLogger())
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCSRFKey(t *testing.T) {
	cfg := validConfig()
	derived := csrfKey(cfg)
	assert.Len(t, derived, 32)
	assert.Equal(t, derived, csrfKey(cfg), "derivation is stable across restarts")

	cfg.CSRFKey = "abcdefghijklmnopqrstuvwxyz012345"
	assert.Equal(t, []byte(cfg.CSRFKey), csrfKey(cfg))
}

func TestOpenObjectStore(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()

	local, err := openObjectStore(ctx, AppConfig{StorageType: "local", StorageLocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", local.Backend())

	s3, err := openObjectStore(ctx, AppConfig{
		StorageType:        "s3",
		StorageS3Region:    "us-east-1",
		StorageS3Bucket:    "scholarhub-test",
		StorageS3Endpoint:  "http://127.0.0.1:9000",
		StorageS3AccessKey: "minio",
		StorageS3SecretKey: "minio-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", s3.Backend())

	_, err = openObjectStore(ctx, AppConfig{StorageType: "s3"})
	assert.Error(t, err, "bucket is required")
}
