package permissions_test

import (
	"testing"

	"github.com/medstock/medstock-backend/pkg/permissions"
	"github.com/stretchr/testify/assert"
)

func TestTable_Allowed(t *testing.T) {
	table := permissions.NewTable()

	tests := []struct {
		name     string
		role     string
		resource string
		action   string
		want     bool
	}{
		{"admin creates users", permissions.RoleAdministrator, permissions.ResourceUsers, permissions.ActionCreate, true},
		{"admin dispenses", permissions.RoleAdministrator, permissions.ResourcePrescriptions, permissions.ActionDispense, true},
		{"admin exports reports", permissions.RoleAdministrator, permissions.ResourceReports, permissions.ActionExport, true},

		{"pharmacist dispenses", permissions.RolePharmacist, permissions.ResourcePrescriptions, permissions.ActionDispense, true},
		{"pharmacist creates stock", permissions.RolePharmacist, permissions.ResourceStock, permissions.ActionCreate, true},
		{"pharmacist views patients", permissions.RolePharmacist, permissions.ResourcePatients, permissions.ActionView, true},
		{"pharmacist cannot create patients", permissions.RolePharmacist, permissions.ResourcePatients, permissions.ActionCreate, false},
		{"pharmacist cannot manage users", permissions.RolePharmacist, permissions.ResourceUsers, permissions.ActionCreate, false},
		{"pharmacist cannot delete medications", permissions.RolePharmacist, permissions.ResourceMedications, permissions.ActionDelete, false},

		{"doctor prescribes", permissions.RoleDoctor, permissions.ResourcePrescriptions, permissions.ActionCreate, true},
		{"doctor schedules appointments", permissions.RoleDoctor, permissions.ResourceAppointments, permissions.ActionCreate, true},
		{"doctor views medications", permissions.RoleDoctor, permissions.ResourceMedications, permissions.ActionView, true},
		{"doctor cannot dispense", permissions.RoleDoctor, permissions.ResourcePrescriptions, permissions.ActionDispense, false},
		{"doctor cannot touch stock", permissions.RoleDoctor, permissions.ResourceStock, permissions.ActionEdit, false},

		{"nurse views patients", permissions.RoleNurse, permissions.ResourcePatients, permissions.ActionView, true},
		{"nurse edits patients", permissions.RoleNurse, permissions.ResourcePatients, permissions.ActionEdit, true},
		{"nurse views stock", permissions.RoleNurse, permissions.ResourceStock, permissions.ActionView, true},
		{"nurse cannot prescribe", permissions.RoleNurse, permissions.ResourcePrescriptions, permissions.ActionCreate, false},
		{"nurse cannot dispense", permissions.RoleNurse, permissions.ResourceStock, permissions.ActionDispense, false},
		{"nurse cannot view reports", permissions.RoleNurse, permissions.ResourceReports, permissions.ActionView, false},

		{"unknown role denied", "intern", permissions.ResourcePatients, permissions.ActionView, false},
		{"unknown resource denied", permissions.RoleAdministrator, "billing", permissions.ActionView, false},
		{"unknown action denied", permissions.RoleAdministrator, permissions.ResourceStock, "audit", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Allowed(tt.role, tt.resource, tt.action))
		})
	}
}

func TestValidRole(t *testing.T) {
	assert.True(t, permissions.ValidRole(permissions.RoleAdministrator))
	assert.True(t, permissions.ValidRole(permissions.RolePharmacist))
	assert.True(t, permissions.ValidRole(permissions.RoleDoctor))
	assert.True(t, permissions.ValidRole(permissions.RoleNurse))
	assert.False(t, permissions.ValidRole("intern"))
	assert.False(t, permissions.ValidRole(""))
}
