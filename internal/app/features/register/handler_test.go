package register_test

import (
	"net/http"
	"net/url"
	"testing"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	"github.com/dalemusser/scholarhub/internal/app/features/register"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	flowstore "github.com/dalemusser/scholarhub/internal/app/store/flows"
	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	h        *register.Handler
	accounts *accountstore.Store
	codes    *testutil.CodeRecorder
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	accounts := accountstore.New(db)
	codes := testutil.NewCodeRecorder()
	flow := accountflow.New(testutil.NewSessionManager(t), flowstore.New(db, 0), accounts, codes, nil, logger)
	return harness{
		h:        register.NewHandler(accounts, flow, uierrors.NewErrorLogger(logger), nil, logger),
		accounts: accounts,
		codes:    codes,
	}
}

func validForm() url.Values {
	return url.Values{
		"email":            {"Teacher@Example.com"},
		"password":         {"Sunflower42x"},
		"confirm_password": {"Sunflower42x"},
		"role":             {"research_teacher"},
		"first_name":       {"maria"},
		"last_name":        {"santos"},
		"birth_month":      {"5"},
		"birth_day":        {"10"},
		"birth_year":       {"1990"},
		"agree_terms":      {"1"},
	}
}

// post runs the handler; form re-renders panic without a booted template
// engine, after the status has been written.
func post(hr harness, form url.Values) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	req := testutil.NewFormRequest("/accounts/register", form.Encode())
	func() {
		defer func() { _ = recover() }()
		hr.h.HandleRegister(rec, req)
	}()
	return rec
}

func TestHandleRegister_Success(t *testing.T) {
	hr := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := post(hr, validForm())
	rec.AssertRedirect(t, accountflow.VerifyPath)

	acct, err := hr.accounts.GetByEmail(ctx, "teacher@example.com")
	require.NoError(t, err)
	assert.False(t, acct.Profile.Approved)
	assert.False(t, acct.Profile.EmailVerified)
	assert.Equal(t, "Maria", acct.Profile.PendingName().FirstName)
	assert.NotEmpty(t, acct.Profile.VerificationCode)
	assert.Equal(t, acct.Profile.VerificationCode, hr.codes.Code(acct.Email))

	var found bool
	for _, c := range rec.Result().Cookies() {
		found = found || c.Name == testutil.TestSessionName
	}
	assert.True(t, found, "expected the session cookie to carry the flow id")
}

func TestHandleRegister_ValidationErrors(t *testing.T) {
	hr := newHarness(t)

	form := validForm()
	form.Set("last_name", "")
	form.Set("confirm_password", "different1")
	rec := post(hr, form)
	rec.AssertStatus(t, http.StatusUnprocessableEntity)
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	hr := newHarness(t)

	post(hr, validForm())
	rec := post(hr, validForm())
	rec.AssertStatus(t, http.StatusUnprocessableEntity)
}

func TestHandleRegister_StudentNeedsBatch(t *testing.T) {
	hr := newHarness(t)

	form := validForm()
	form.Set("role", "shs_student")
	form.Set("birth_year", "2009")
	rec := post(hr, form)
	rec.AssertStatus(t, http.StatusUnprocessableEntity)

	form.Set("g11", "2024-2025")
	rec = post(hr, form)
	rec.AssertRedirect(t, accountflow.VerifyPath)
}
