package accountflow_test

import (
	"testing"

	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/app/system/gates"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestLanding(t *testing.T) {
	pending := models.Account{Role: models.RoleSHSStudent}
	assert.Equal(t, gates.PendingPath, accountflow.Landing(pending, "/papers"))

	approved := models.Account{Role: models.RoleSHSStudent, Profile: models.Profile{Approved: true}}
	assert.Equal(t, "/papers", accountflow.Landing(approved, "/papers"))
	assert.Equal(t, gates.DashboardPath, accountflow.Landing(approved, ""))
	assert.Equal(t, gates.DashboardPath, accountflow.Landing(approved, "https://evil.example/"))

	admin := models.Account{Role: models.RoleAdmin}
	assert.Equal(t, gates.DashboardPath, accountflow.Landing(admin, ""))
}
