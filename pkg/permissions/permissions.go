// Package permissions implements the role capability model as a single
// table keyed by (role, resource, action), built once at startup and
// queried via a pure lookup.
package permissions

// Roles
const (
	RoleAdministrator = "administrator"
	RolePharmacist    = "pharmacist"
	RoleDoctor        = "doctor"
	RoleNurse         = "nurse"
)

// Resources
const (
	ResourceUsers         = "users"
	ResourceMedications   = "medications"
	ResourceStock         = "stock"
	ResourcePatients      = "patients"
	ResourceAppointments  = "appointments"
	ResourcePrescriptions = "prescriptions"
	ResourceReports       = "reports"
)

// Actions
const (
	ActionCreate   = "create"
	ActionEdit     = "edit"
	ActionView     = "view"
	ActionDelete   = "delete"
	ActionDispense = "dispense"
	ActionExport   = "export"
)

type capability struct {
	role     string
	resource string
	action   string
}

// Table holds the capability set for all roles.
type Table struct {
	grants map[capability]struct{}
}

// NewTable builds the capability table. The matrix mirrors the four
// operational roles of the hospital: administrators manage everything,
// pharmacists run the stock and dispense prescriptions, doctors run the
// clinical workflow, nurses have read access plus patient updates.
func NewTable() *Table {
	t := &Table{grants: make(map[capability]struct{})}

	crud := []string{ActionCreate, ActionEdit, ActionView, ActionDelete}

	// Administrator
	for _, res := range []string{
		ResourceUsers, ResourceMedications, ResourceStock,
		ResourcePatients, ResourceAppointments, ResourcePrescriptions,
	} {
		t.grant(RoleAdministrator, res, crud...)
	}
	t.grant(RoleAdministrator, ResourceStock, ActionDispense)
	t.grant(RoleAdministrator, ResourcePrescriptions, ActionDispense)
	t.grant(RoleAdministrator, ResourceReports, ActionView, ActionExport)

	// Pharmacist
	t.grant(RolePharmacist, ResourceMedications, ActionCreate, ActionEdit, ActionView)
	t.grant(RolePharmacist, ResourceStock, ActionCreate, ActionEdit, ActionView, ActionDispense)
	t.grant(RolePharmacist, ResourcePrescriptions, ActionView, ActionDispense)
	t.grant(RolePharmacist, ResourcePatients, ActionView)
	t.grant(RolePharmacist, ResourceReports, ActionView)

	// Doctor
	t.grant(RoleDoctor, ResourcePatients, ActionCreate, ActionEdit, ActionView)
	t.grant(RoleDoctor, ResourceAppointments, ActionCreate, ActionEdit, ActionView)
	t.grant(RoleDoctor, ResourcePrescriptions, ActionCreate, ActionEdit, ActionView)
	t.grant(RoleDoctor, ResourceMedications, ActionView)
	t.grant(RoleDoctor, ResourceReports, ActionView)

	// Nurse
	t.grant(RoleNurse, ResourcePatients, ActionView, ActionEdit)
	t.grant(RoleNurse, ResourceAppointments, ActionView)
	t.grant(RoleNurse, ResourceMedications, ActionView)
	t.grant(RoleNurse, ResourceStock, ActionView)
	t.grant(RoleNurse, ResourcePrescriptions, ActionView)

	return t
}

func (t *Table) grant(role, resource string, actions ...string) {
	for _, a := range actions {
		t.grants[capability{role, resource, a}] = struct{}{}
	}
}

// Allowed reports whether the role may perform action on resource.
// Pure lookup; unknown roles have no capabilities.
func (t *Table) Allowed(role, resource, action string) bool {
	_, ok := t.grants[capability{role, resource, action}]
	return ok
}

// ValidRole reports whether the role name is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdministrator, RolePharmacist, RoleDoctor, RoleNurse:
		return true
	}
	return false
}
