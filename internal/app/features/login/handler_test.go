package login_test

import (
	"net/http"
	"net/url"
	"testing"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	"github.com/dalemusser/scholarhub/internal/app/features/login"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	flowstore "github.com/dalemusser/scholarhub/internal/app/store/flows"
	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/app/system/gates"
	"github.com/dalemusser/scholarhub/internal/app/system/ratelimit"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	h        *login.Handler
	accounts *accountstore.Store
	codes    *testutil.CodeRecorder
	fx       *testutil.Fixtures
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	accounts := accountstore.New(db)
	codes := testutil.NewCodeRecorder()
	flow := accountflow.New(testutil.NewSessionManager(t), flowstore.New(db, 0), accounts, codes, nil, logger)
	return harness{
		h:        login.NewHandler(accounts, flow, ratelimit.NewGuard(), uierrors.NewErrorLogger(logger), nil, logger),
		accounts: accounts,
		codes:    codes,
		fx:       testutil.NewFixtures(t, db),
	}
}

// call runs fn on a fresh recorder. Re-rendered pages panic without a booted
// template engine, after the status has been written.
func call(fn http.HandlerFunc, req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	func() {
		defer func() { _ = recover() }()
		fn(rec, req)
	}()
	return rec
}

func loginReq(email, password string) *http.Request {
	return testutil.NewFormRequest("/login", url.Values{"email": {email}, "password": {password}}.Encode())
}

func codeReq(code string) *http.Request {
	return testutil.NewFormRequest(accountflow.VerifyPath, url.Values{"code": {code}}.Encode())
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"ana@example.com": "a**@example.com",
		"a@example.com":   "a@example.com",
		"not-an-email":    "not-an-email",
	}
	for in, want := range cases {
		assert.Equal(t, want, login.MaskEmail(in), in)
	}
}

func TestHandleLogin_UnknownEmailAndBadPassword(t *testing.T) {
	hr := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	hr.fx.CreateAccount(ctx, "ana@example.com", models.RoleSHSStudent, testutil.Approved())

	rec := call(hr.h.HandleLogin, loginReq("nobody@example.com", testutil.FixturePassword))
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = call(hr.h.HandleLogin, loginReq("ana@example.com", "wrong-password"))
	rec.AssertStatus(t, http.StatusUnauthorized)
	assert.Empty(t, hr.codes.Code("ana@example.com"), "no code is sent for a failed login")
}

func TestHandleLogin_InactiveRefused(t *testing.T) {
	hr := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	acct := hr.fx.CreateAccount(ctx, "ana@example.com", models.RoleSHSStudent, testutil.Approved())
	require.NoError(t, hr.accounts.SetActive(ctx, acct.ID, false))

	rec := call(hr.h.HandleLogin, loginReq("ana@example.com", testutil.FixturePassword))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestLoginVerifyFlow(t *testing.T) {
	hr := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	hr.fx.CreateAccount(ctx, "ana@example.com", models.RoleSHSStudent, testutil.Approved())

	first := call(hr.h.HandleLogin, loginReq("ANA@example.com", testutil.FixturePassword))
	first.AssertRedirect(t, accountflow.VerifyPath)
	code := hr.codes.Code("ana@example.com")
	require.Len(t, code, 6)

	verified := call(hr.h.HandleVerify, testutil.CarryCookies(first.ResponseRecorder, codeReq(code)))
	verified.AssertRedirect(t, gates.DashboardPath)

	// The account is now verified for this browser, so a second login skips
	// the code.
	again := call(hr.h.HandleLogin, testutil.CarryCookies(verified.ResponseRecorder, loginReq("ana@example.com", testutil.FixturePassword)))
	again.AssertRedirect(t, gates.DashboardPath)
}

func TestLoginVerifyFlow_UnapprovedLandsOnPending(t *testing.T) {
	hr := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	hr.fx.CreateAccount(ctx, "ben@example.com", models.RoleResearchTeacher)

	first := call(hr.h.HandleLogin, loginReq("ben@example.com", testutil.FixturePassword))
	first.AssertRedirect(t, accountflow.VerifyPath)

	verified := call(hr.h.HandleVerify, testutil.CarryCookies(first.ResponseRecorder, codeReq(hr.codes.Code("ben@example.com"))))
	verified.AssertRedirect(t, gates.PendingPath)
}

func TestHandleVerify_WrongCodeCountsAttempt(t *testing.T) {
	hr := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	acct := hr.fx.CreateAccount(ctx, "ana@example.com", models.RoleSHSStudent, testutil.Approved())

	first := call(hr.h.HandleLogin, loginReq("ana@example.com", testutil.FixturePassword))
	wrong := "000000"
	if hr.codes.Code("ana@example.com") == wrong {
		wrong = "111111"
	}

	rec := call(hr.h.HandleVerify, testutil.CarryCookies(first.ResponseRecorder, codeReq(wrong)))
	rec.AssertStatus(t, http.StatusUnprocessableEntity)

	got, err := hr.accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Profile.VerificationAttempts)
}

func TestHandleVerify_NoPending(t *testing.T) {
	hr := newHarness(t)
	rec := call(hr.h.HandleVerify, codeReq("123456"))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleResend_IssuesNewCode(t *testing.T) {
	hr := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	acct := hr.fx.CreateAccount(ctx, "ana@example.com", models.RoleSHSStudent, testutil.Approved())

	first := call(hr.h.HandleLogin, loginReq("ana@example.com", testutil.FixturePassword))
	req := testutil.CarryCookies(first.ResponseRecorder, testutil.NewFormRequest("/accounts/resend-verification", ""))
	rec := call(hr.h.HandleResend, req)
	rec.AssertRedirect(t, accountflow.VerifyPath)

	got, err := hr.accounts.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Profile.VerificationCode, hr.codes.Code("ana@example.com"))
}

func TestHandleResend_NoPendingGoesToLogin(t *testing.T) {
	hr := newHarness(t)
	rec := call(hr.h.HandleResend, testutil.NewFormRequest("/accounts/resend-verification", ""))
	rec.AssertRedirect(t, "/login")
}
