// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/store/audit"
	"github.com/dalemusser/scholarhub/internal/app/system/authz"
	"github.com/dalemusser/scholarhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of audit events.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls sign-in, registration, verification and reset events.
	Auth string
	// Admin controls approvals, consent review, user management and paper edits.
	Admin string
}

// Valid reports whether s is a known destination.
func Valid(s string) bool {
	switch s {
	case All, DB, Log, Off:
		return true
	}
	return false
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = All
	}

	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if setting == All || setting == DB {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// request fills in the request-derived fields: client IP, user agent and
// the signed-in actor.
func request(r *http.Request, e audit.Event) audit.Event {
	e.IP = ratelimit.ClientIP(r)
	e.UserAgent = r.UserAgent()
	if _, _, id, ok := authz.UserCtx(r); ok && e.ActorID == nil {
		e.ActorID = &id
	}
	return e
}

func auth(r *http.Request, eventType string, userID *primitive.ObjectID, success bool, reason string, details map[string]string) audit.Event {
	return request(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		Success:       success,
		FailureReason: reason,
		Details:       details,
	})
}

func admin(r *http.Request, eventType string, userID *primitive.ObjectID, details map[string]string) audit.Event {
	return request(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    userID,
		Success:   true,
		Details:   details,
	})
}

// --- Authentication Events ---

// LoginSuccess logs a password check that led to a session or a code.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, auth(r, audit.EventLoginSuccess, &userID, true, "", map[string]string{"email": email}))
}

func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, auth(r, audit.EventLoginFailedUserNotFound, nil, false, "user not found",
		map[string]string{"attempted_email": email}))
}

func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, auth(r, audit.EventLoginFailedWrongPassword, &userID, false, "wrong password",
		map[string]string{"email": email}))
}

func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, auth(r, audit.EventLoginFailedUserDisabled, &userID, false, "account deactivated",
		map[string]string{"email": email}))
}

func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, auth(r, audit.EventLoginFailedRateLimit, nil, false, "rate limited",
		map[string]string{"attempted_email": email}))
}

// Logout logs a sign-out. userIDStr comes from the SessionUser.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	l.Log(ctx, auth(r, audit.EventLogout, userID, true, "", nil))
}

// Registered logs a new self-service account.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, role string) {
	l.Log(ctx, auth(r, audit.EventRegistered, &userID, true, "",
		map[string]string{"email": email, "role": role}))
}

// EmailVerified logs a correct verification code. purpose is login,
// registration or reset.
func (l *Logger) EmailVerified(ctx context.Context, r *http.Request, userID primitive.ObjectID, purpose string) {
	l.Log(ctx, auth(r, audit.EventEmailVerified, &userID, true, "",
		map[string]string{"purpose": purpose}))
}

// VerificationFailed logs a rejected code (wrong, expired or locked).
func (l *Logger) VerificationFailed(ctx context.Context, r *http.Request, userID primitive.ObjectID, reason string) {
	l.Log(ctx, auth(r, audit.EventVerificationFailed, &userID, false, reason, nil))
}

func (l *Logger) PasswordReset(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, auth(r, audit.EventPasswordReset, &userID, true, "", nil))
}

// --- Admin Events ---

// AccountApproved logs an approval. resolution says how the account's
// identity was reconciled with the author records.
func (l *Logger) AccountApproved(ctx context.Context, r *http.Request, targetID primitive.ObjectID, email, resolution string) {
	l.Log(ctx, admin(r, audit.EventAccountApproved, &targetID, map[string]string{
		"email":      email,
		"resolution": resolution,
	}))
}

// AccountDenied logs a denial, which deletes the pending account.
func (l *Logger) AccountDenied(ctx context.Context, r *http.Request, targetID primitive.ObjectID, email string) {
	l.Log(ctx, admin(r, audit.EventAccountDenied, &targetID, map[string]string{"email": email}))
}

// ConsentReviewed logs an approve or deny decision on an uploaded form.
func (l *Logger) ConsentReviewed(ctx context.Context, r *http.Request, targetID primitive.ObjectID, approved bool) {
	et := audit.EventConsentDenied
	if approved {
		et = audit.EventConsentApproved
	}
	l.Log(ctx, admin(r, et, &targetID, nil))
}

// UserUpdated logs an admin edit of another account.
func (l *Logger) UserUpdated(ctx context.Context, r *http.Request, targetID primitive.ObjectID, role string) {
	l.Log(ctx, admin(r, audit.EventUserUpdated, &targetID, map[string]string{"role": role}))
}

// UserActiveChanged logs activation or deactivation.
func (l *Logger) UserActiveChanged(ctx context.Context, r *http.Request, targetID primitive.ObjectID, active bool) {
	et := audit.EventUserDisabled
	if active {
		et = audit.EventUserEnabled
	}
	l.Log(ctx, admin(r, et, &targetID, nil))
}

func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, targetID primitive.ObjectID, email string) {
	l.Log(ctx, admin(r, audit.EventUserDeleted, &targetID, map[string]string{"email": email}))
}

func (l *Logger) PaperCreated(ctx context.Context, r *http.Request, paperID primitive.ObjectID, title string) {
	l.Log(ctx, admin(r, audit.EventPaperCreated, nil, paperDetails(paperID, title)))
}

func (l *Logger) PaperUpdated(ctx context.Context, r *http.Request, paperID primitive.ObjectID, title string) {
	l.Log(ctx, admin(r, audit.EventPaperUpdated, nil, paperDetails(paperID, title)))
}

func (l *Logger) PaperDeleted(ctx context.Context, r *http.Request, paperID primitive.ObjectID, title string) {
	l.Log(ctx, admin(r, audit.EventPaperDeleted, nil, paperDetails(paperID, title)))
}

func paperDetails(id primitive.ObjectID, title string) map[string]string {
	return map[string]string{"paper_id": id.Hex(), "title": title}
}
