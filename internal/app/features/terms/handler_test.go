package terms_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/scholarhub/internal/app/features/terms"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestServeTerms_Public(t *testing.T) {
	h := terms.NewHandler(zap.NewNop())
	a := assert.New(t)
	a.NotNil(h)

	rec := testutil.NewRecorder()
	func() {
		defer func() { _ = recover() }()
		h.ServeTerms(rec, httptest.NewRequest(http.MethodGet, "/terms", nil))
	}()
	a.Empty(rec.Header().Get("Location"))
}
