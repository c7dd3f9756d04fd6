// Package consent moves a student's public-name consent through its states:
// not consented, pending guardian approval, consented.
//
// Adults consent for themselves. Minors upload a signed guardian form (PDF)
// which a teacher or admin then approves or denies. Whenever a stored form
// is replaced or discarded the profile is saved first and the old file is
// deleted second, so a failed delete leaves an orphaned file rather than a
// profile pointing at nothing.
package consent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/objectstore"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AdultAge is the age at which a student may consent without a guardian.
const AdultAge = 18

// MaxFileSize caps a guardian form upload.
const MaxFileSize = 10 << 20

var (
	ErrNotFound    = errors.New("account not found")
	ErrNotEligible = errors.New("not eligible to change consent this way")
	ErrInvalidFile = errors.New("invalid guardian consent file")
	ErrWrongState  = errors.New("consent is not in the expected state")
)

// Error carries a message suitable for the person who made the request.
// Kind is one of the package sentinels.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, msg string) error { return &Error{Kind: kind, Msg: msg} }

// Message returns a user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	switch {
	case errors.Is(err, ErrWrongState):
		return "This consent is not pending approval."
	case errors.Is(err, ErrNotFound):
		return "Account not found."
	default:
		return "Something went wrong while updating consent."
	}
}

// Accounts is the persistence the service needs.
type Accounts interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Account, error)
	SetConsent(ctx context.Context, id primitive.ObjectID, expect models.ConsentStatus, u accountstore.ConsentUpdate) error
}

// Upload is a guardian form received from a multipart request.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Service applies consent transitions.
type Service struct {
	accounts Accounts
	files    storage.Store
	logger   *zap.Logger
	now      func() time.Time
}

func New(accounts Accounts, files storage.Store, logger *zap.Logger) *Service {
	return &Service{accounts: accounts, files: files, logger: logger, now: time.Now}
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("load account: %w", err)
	}
	a.Profile.ConsentStatus = a.Profile.ConsentStatus.Normalize()
	return a, nil
}

func (s *Service) set(ctx context.Context, a *models.Account, u accountstore.ConsentUpdate) error {
	err := s.accounts.SetConsent(ctx, a.ID, a.Profile.ConsentStatus, u)
	switch {
	case errors.Is(err, accountstore.ErrStale):
		return ErrWrongState
	case errors.Is(err, accountstore.ErrNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("save consent: %w", err)
	}
	a.Profile.ConsentStatus = u.Status
	a.Profile.ConsentDate = u.Date
	a.Profile.ConsentFile = u.File
	return nil
}

// removeFile deletes a stored form after the profile no longer points at it.
// Failures are logged and otherwise ignored.
func (s *Service) removeFile(ctx context.Context, accountID primitive.ObjectID, key string) {
	if err := objectstore.Remove(ctx, s.files, key); err != nil {
		s.logger.Warn("failed to delete consent file",
			zap.String("account_id", accountID.Hex()),
			zap.String("key", key),
			zap.Error(err))
	}
}

func ageCheck(a models.Account, now time.Time) (int, error) {
	if a.Birthdate == nil {
		return 0, fail(ErrNotEligible, "Your birthdate is not set. Please contact the administrator.")
	}
	return a.Age(now), nil
}

// SelfConsent records an adult's own consent. Consenting again is a no-op.
func (s *Service) SelfConsent(ctx context.Context, id primitive.ObjectID, agreed bool) (models.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return a, err
	}
	now := s.now().UTC()
	age, err := ageCheck(a, now)
	if err != nil {
		return a, err
	}
	if age < AdultAge {
		return a, fail(ErrNotEligible, "You must be 18 or older to consent without guardian approval.")
	}
	if !agreed {
		return a, fail(ErrNotEligible, "You must agree to the terms and conditions.")
	}
	if a.Profile.ConsentStatus == models.ConsentConsented {
		return a, nil
	}

	old := a.Profile.ConsentFile
	if err := s.set(ctx, &a, accountstore.ConsentUpdate{Status: models.ConsentConsented, Date: &now}); err != nil {
		return a, err
	}
	s.removeFile(ctx, a.ID, old)
	s.logger.Info("consent granted", zap.String("account_id", a.ID.Hex()))
	return a, nil
}

// validateUpload checks name, size and the PDF signature, returning a reader
// that still yields the whole file.
func validateUpload(u Upload) (io.Reader, error) {
	if u.Body == nil || u.Filename == "" {
		return nil, fail(ErrInvalidFile, "Please select a PDF file to upload.")
	}
	if !strings.HasSuffix(strings.ToLower(u.Filename), ".pdf") {
		return nil, fail(ErrInvalidFile, "Only PDF files are allowed.")
	}
	if u.Size > MaxFileSize {
		return nil, fail(ErrInvalidFile, "File size exceeds 10MB limit.")
	}
	body, err := objectstore.SniffPDF(u.Body)
	if errors.Is(err, objectstore.ErrNotPDF) {
		return nil, fail(ErrInvalidFile, "The uploaded file is not a valid PDF.")
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return io.LimitReader(body, MaxFileSize), nil
}

// SubmitGuardianForm stores a minor's signed guardian form and marks consent
// pending review. A previous form, if any, is replaced.
func (s *Service) SubmitGuardianForm(ctx context.Context, id primitive.ObjectID, agreed bool, u Upload) (models.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return a, err
	}
	now := s.now().UTC()
	age, err := ageCheck(a, now)
	if err != nil {
		return a, err
	}
	if age >= AdultAge {
		return a, fail(ErrNotEligible, "Guardian consent is only required for users under 18.")
	}
	if !agreed {
		return a, fail(ErrNotEligible, "You must agree to the terms and conditions.")
	}
	if a.Profile.ConsentStatus == models.ConsentConsented {
		return a, ErrWrongState
	}
	body, err := validateUpload(u)
	if err != nil {
		return a, err
	}

	key := objectstore.NewKey(objectstore.PrefixConsent, u.Filename, now)
	if err := objectstore.PutPDF(ctx, s.files, key, body); err != nil {
		return a, fmt.Errorf("store consent file: %w", err)
	}

	old := a.Profile.ConsentFile
	if err := s.set(ctx, &a, accountstore.ConsentUpdate{Status: models.ConsentPendingGuardian, File: key}); err != nil {
		s.removeFile(ctx, a.ID, key)
		return a, err
	}
	s.removeFile(ctx, a.ID, old)
	s.logger.Info("guardian consent submitted",
		zap.String("account_id", a.ID.Hex()),
		zap.String("key", key))
	return a, nil
}

// Approve accepts a pending guardian form. The form is kept on file.
func (s *Service) Approve(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return a, err
	}
	if a.Profile.ConsentStatus != models.ConsentPendingGuardian {
		return a, ErrWrongState
	}
	now := s.now().UTC()
	if err := s.set(ctx, &a, accountstore.ConsentUpdate{Status: models.ConsentConsented, Date: &now, File: a.Profile.ConsentFile}); err != nil {
		return a, err
	}
	s.logger.Info("guardian consent approved", zap.String("account_id", a.ID.Hex()))
	return a, nil
}

// Deny rejects a pending guardian form and discards it.
func (s *Service) Deny(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return a, err
	}
	if a.Profile.ConsentStatus != models.ConsentPendingGuardian {
		return a, ErrWrongState
	}
	old := a.Profile.ConsentFile
	if err := s.set(ctx, &a, accountstore.ConsentUpdate{Status: models.ConsentNotConsented}); err != nil {
		return a, err
	}
	s.removeFile(ctx, a.ID, old)
	s.logger.Info("guardian consent denied", zap.String("account_id", a.ID.Hex()))
	return a, nil
}

// Revoke withdraws a granted consent.
func (s *Service) Revoke(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return a, err
	}
	if a.Profile.ConsentStatus != models.ConsentConsented {
		return a, ErrWrongState
	}
	old := a.Profile.ConsentFile
	if err := s.set(ctx, &a, accountstore.ConsentUpdate{Status: models.ConsentNotConsented}); err != nil {
		return a, err
	}
	s.removeFile(ctx, a.ID, old)
	s.logger.Info("consent revoked", zap.String("account_id", a.ID.Hex()))
	return a, nil
}

// OpenForm returns the stored guardian form of an account.
func (s *Service) OpenForm(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, models.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, a, err
	}
	if a.Profile.ConsentFile == "" {
		return nil, a, storage.ErrNotFound
	}
	rc, err := s.files.Get(ctx, a.Profile.ConsentFile)
	return rc, a, err
}

// DiscardFiles deletes every stored file of an account that is being
// removed.
func (s *Service) DiscardFiles(ctx context.Context, a models.Account) {
	s.removeFile(ctx, a.ID, a.Profile.ConsentFile)
}
