// Package approval runs the admin approval workflow: turning a pending
// account into an approved member and reconciling its authoring identity.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	"github.com/dalemusser/scholarhub/internal/app/system/registration"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrAlreadyApproved = errors.New("account already approved")
	// ErrIdentityConflict means the account's name belongs to an author
	// claimed by someone else. An admin must correct the name first.
	ErrIdentityConflict = authorstore.ErrIdentityConflict
)

// Accounts is the account storage the workflow needs.
type Accounts interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Account, error)
	UpdatePending(ctx context.Context, id primitive.ObjectID, e accountstore.PendingEdit) error
	MarkApproved(ctx context.Context, id primitive.ObjectID, authorIDs, paperIDs []primitive.ObjectID, at time.Time) error
}

// Authors is the author storage the workflow needs.
type Authors interface {
	GetByAccount(ctx context.Context, accountID primitive.ObjectID) (models.Author, error)
	FindByName(ctx context.Context, name models.Author) (models.Author, error)
	Claim(ctx context.Context, authorID, accountID primitive.ObjectID, details models.Author) (models.Author, error)
	Create(ctx context.Context, a models.Author) (models.Author, error)
	Update(ctx context.Context, a models.Author) error
	Release(ctx context.Context, accountID primitive.ObjectID) error
	ListUnclaimedMatching(ctx context.Context, name models.Author) ([]models.Author, error)
}

// Papers resolves the papers credited to a set of authors.
type Papers interface {
	IDsByAuthors(ctx context.Context, authorIDs []primitive.ObjectID) ([]primitive.ObjectID, error)
}

// Notifier is told about approvals. Delivery is best-effort.
type Notifier interface {
	Approved(a models.Account)
}

type Service struct {
	accounts Accounts
	authors  Authors
	papers   Papers
	notify   Notifier
	log      *zap.Logger
	now      func() time.Time
}

// New builds a Service. notify may be nil.
func New(accounts Accounts, authors Authors, papers Papers, notify Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		accounts: accounts,
		authors:  authors,
		papers:   papers,
		notify:   notify,
		log:      logger,
		now:      time.Now,
	}
}

// Resolution says how an authoring identity was found.
type Resolution int

const (
	Reused Resolution = iota + 1
	Claimed
	Created
)

func (r Resolution) String() string {
	switch r {
	case Reused:
		return "reused"
	case Claimed:
		return "claimed"
	case Created:
		return "created"
	}
	return "none"
}

// Result describes a completed approval. Author is nil for roles that do
// not author papers.
type Result struct {
	Account    models.Account
	Author     *models.Author
	Resolution Resolution
}

func identityDetails(a models.Account) models.Author {
	d := a.Profile.PendingName()
	d.G11Batch = a.Profile.PendingG11
	d.G12Batch = a.Profile.PendingG12
	d.Birthdate = a.Birthdate
	return d
}

// ResolveOrCreateAuthoringIdentity finds the author a student account
// should be linked to:
//
//  1. the author this account already claimed
//  2. an unclaimed author with the exact normalized name, claimed atomically
//  3. a new author
//
// A name held by another account is ErrIdentityConflict and changes
// nothing. A create that loses a race re-resolves once.
func (s *Service) ResolveOrCreateAuthoringIdentity(ctx context.Context, a models.Account) (models.Author, Resolution, error) {
	existing, err := s.authors.GetByAccount(ctx, a.ID)
	if err == nil {
		return existing, Reused, nil
	}
	if !errors.Is(err, authorstore.ErrNotFound) {
		return models.Author{}, 0, fmt.Errorf("lookup author by account: %w", err)
	}

	details := identityDetails(a)
	for attempt := 0; attempt < 2; attempt++ {
		found, err := s.authors.FindByName(ctx, details)
		switch {
		case err == nil:
			if found.Claimed() && !found.ClaimedBy(a.ID) {
				return models.Author{}, 0, ErrIdentityConflict
			}
			claimed, err := s.authors.Claim(ctx, found.ID, a.ID, details)
			if errors.Is(err, authorstore.ErrAlreadyClaimed) {
				return models.Author{}, 0, ErrIdentityConflict
			}
			if err != nil {
				return models.Author{}, 0, fmt.Errorf("claim author: %w", err)
			}
			return claimed, Claimed, nil

		case errors.Is(err, authorstore.ErrNotFound):
			create := details
			uid := a.ID
			create.UserID = &uid
			created, err := s.authors.Create(ctx, create)
			if err == nil {
				return created, Created, nil
			}
			if !errors.Is(err, authorstore.ErrIdentityConflict) {
				return models.Author{}, 0, fmt.Errorf("create author: %w", err)
			}
			// Lost a race on the name key; look again.

		default:
			return models.Author{}, 0, fmt.Errorf("lookup author by name: %w", err)
		}
	}
	return models.Author{}, 0, ErrIdentityConflict
}

// Approve approves the pending account id. An account whose role does not
// author papers gives up any author it had claimed.
func (s *Service) Approve(ctx context.Context, id primitive.ObjectID) (Result, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}
	if a.Profile.Approved {
		return Result{}, ErrAlreadyApproved
	}

	res := Result{Account: a}
	authorIDs := append([]primitive.ObjectID(nil), a.Profile.AuthorIDs...)
	if a.NeedsAuthoringIdentity() {
		author, how, err := s.ResolveOrCreateAuthoringIdentity(ctx, a)
		if err != nil {
			return Result{}, err
		}
		res.Author = &author
		res.Resolution = how
		authorIDs = addID(authorIDs, author.ID)
	} else {
		released, err := s.releaseIdentity(ctx, id)
		if err != nil {
			return Result{}, err
		}
		authorIDs = removeID(authorIDs, released)
	}

	paperIDs, err := s.papers.IDsByAuthors(ctx, authorIDs)
	if err != nil {
		return Result{}, fmt.Errorf("resolve papers: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.MarkApproved(ctx, id, authorIDs, paperIDs, now); err != nil {
		if errors.Is(err, accountstore.ErrStale) {
			return Result{}, ErrAlreadyApproved
		}
		if errors.Is(err, accountstore.ErrNotFound) {
			return Result{}, ErrNotFound
		}
		return Result{}, fmt.Errorf("mark approved: %w", err)
	}

	res.Account.Profile.Approved = true
	res.Account.Profile.ApprovedAt = &now
	res.Account.Profile.AuthorIDs = authorIDs
	res.Account.Profile.PaperIDs = paperIDs

	fields := []zap.Field{zap.String("account_id", id.Hex()), zap.String("role", string(a.Role))}
	if res.Author != nil {
		fields = append(fields, zap.String("author_id", res.Author.ID.Hex()), zap.Stringer("resolution", res.Resolution))
	}
	s.log.Info("account approved", fields...)

	if s.notify != nil {
		s.notify.Approved(res.Account)
	}
	return res, nil
}

// releaseIdentity unclaims the author held by an account whose role no
// longer authors papers. It returns the released author's ID, or the zero ID.
func (s *Service) releaseIdentity(ctx context.Context, id primitive.ObjectID) (primitive.ObjectID, error) {
	held, err := s.authors.GetByAccount(ctx, id)
	if errors.Is(err, authorstore.ErrNotFound) {
		return primitive.NilObjectID, nil
	}
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("lookup author by account: %w", err)
	}
	if err := s.authors.Release(ctx, id); err != nil {
		return primitive.NilObjectID, fmt.Errorf("release author: %w", err)
	}
	s.log.Info("authoring identity released",
		zap.String("account_id", id.Hex()),
		zap.String("author_id", held.ID.Hex()))
	return held.ID, nil
}

// Edit is the correction an admin may apply before approving.
type Edit = accountstore.PendingEdit

// ValidateEdit checks names, role and batch years. The returned Errors is
// empty when e is acceptable.
func ValidateEdit(e Edit) registration.Errors {
	errs := registration.Errors{}
	if e.FirstName == "" {
		errs[registration.FieldFirst] = "First name is required."
	}
	if e.LastName == "" {
		errs[registration.FieldLast] = "Last name is required."
	}
	if len([]rune(e.MiddleInitial)) > 1 {
		errs[registration.FieldMiddle] = "Middle initial must be a single letter."
	}
	if !e.Role.Registrable() {
		errs[registration.FieldRole] = "Choose a valid role."
		return errs
	}
	for f, m := range registration.CheckBatches(e.Role, e.TookSHS, e.G11, e.G12) {
		errs[f] = m
	}
	return errs
}

// ApproveWithEdit checks the admin's corrections against existing authors,
// saves them and then approves. When the account already claimed an author,
// that author is renamed to match; a rename onto another author's name is
// ErrIdentityConflict. A conflict is found before anything is written.
func (s *Service) ApproveWithEdit(ctx context.Context, id primitive.ObjectID, e Edit) (Result, error) {
	e = trimEdit(e)
	if errs := ValidateEdit(e); len(errs) > 0 {
		return Result{}, errs
	}

	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}
	if a.Profile.Approved {
		return Result{}, ErrAlreadyApproved
	}

	linked, err := s.authors.GetByAccount(ctx, id)
	hasLinked := err == nil
	if err != nil && !errors.Is(err, authorstore.ErrNotFound) {
		return Result{}, fmt.Errorf("lookup author by account: %w", err)
	}

	edited := applyEdit(a, e)
	if edited.NeedsAuthoringIdentity() {
		if err := s.checkName(ctx, edited, linked, hasLinked); err != nil {
			return Result{}, err
		}
	}

	if err := s.accounts.UpdatePending(ctx, id, e); err != nil {
		return Result{}, fmt.Errorf("update pending profile: %w", err)
	}

	if hasLinked && edited.NeedsAuthoringIdentity() {
		renamed := identityDetails(edited)
		renamed.ID = linked.ID
		renamed.UserID = linked.UserID
		renamed.CreatedAt = linked.CreatedAt
		if renamed.Birthdate == nil {
			renamed.Birthdate = linked.Birthdate
		}
		if err := s.authors.Update(ctx, renamed); err != nil {
			s.restorePending(ctx, a)
			if errors.Is(err, authorstore.ErrIdentityConflict) {
				return Result{}, ErrIdentityConflict
			}
			return Result{}, fmt.Errorf("update linked author: %w", err)
		}
	}

	return s.Approve(ctx, id)
}

// checkName reports ErrIdentityConflict when the edited name would collide
// with an author the account cannot take over.
func (s *Service) checkName(ctx context.Context, edited models.Account, linked models.Author, hasLinked bool) error {
	found, err := s.authors.FindByName(ctx, identityDetails(edited))
	if errors.Is(err, authorstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup author by name: %w", err)
	}
	if hasLinked {
		if found.ID != linked.ID {
			return ErrIdentityConflict
		}
		return nil
	}
	if found.Claimed() && !found.ClaimedBy(edited.ID) {
		return ErrIdentityConflict
	}
	return nil
}

// restorePending puts back the pending profile a failed edit replaced.
func (s *Service) restorePending(ctx context.Context, a models.Account) {
	prev := Edit{
		FirstName:     a.Profile.PendingFirstName,
		MiddleInitial: a.Profile.PendingMiddleInitial,
		LastName:      a.Profile.PendingLastName,
		Suffix:        a.Profile.PendingSuffix,
		Role:          a.Role,
		TookSHS:       a.Profile.TookSHS,
		G11:           a.Profile.PendingG11,
		G12:           a.Profile.PendingG12,
	}
	if err := s.accounts.UpdatePending(ctx, a.ID, prev); err != nil {
		s.log.Error("restore pending profile failed", zap.String("account_id", a.ID.Hex()), zap.Error(err))
	}
}

func applyEdit(a models.Account, e Edit) models.Account {
	a.Role = e.Role
	a.Profile.PendingFirstName = e.FirstName
	a.Profile.PendingMiddleInitial = e.MiddleInitial
	a.Profile.PendingLastName = e.LastName
	a.Profile.PendingSuffix = e.Suffix
	a.Profile.TookSHS = e.TookSHS
	a.Profile.PendingG11 = e.G11
	a.Profile.PendingG12 = e.G12
	return a
}

// Hint pairs a pending account with unclaimed authors that share its name,
// so the admin can see whether approval will claim or create.
type Hint struct {
	Account    models.Account
	Candidates []models.Author
}

// MatchHints builds a Hint per account. Accounts that will not get an
// authoring identity get no candidates.
func (s *Service) MatchHints(ctx context.Context, pending []models.Account) ([]Hint, error) {
	out := make([]Hint, 0, len(pending))
	for _, a := range pending {
		h := Hint{Account: a}
		if a.NeedsAuthoringIdentity() {
			c, err := s.authors.ListUnclaimedMatching(ctx, a.Profile.PendingName())
			if err != nil {
				return nil, err
			}
			h.Candidates = c
		}
		out = append(out, h)
	}
	return out, nil
}

func trimEdit(e Edit) Edit {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.MiddleInitial = strings.TrimSpace(e.MiddleInitial)
	e.LastName = strings.TrimSpace(e.LastName)
	e.Suffix = strings.TrimSpace(e.Suffix)
	e.G11 = strings.TrimSpace(e.G11)
	e.G12 = strings.TrimSpace(e.G12)
	return e
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if id.IsZero() {
		return ids
	}
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
