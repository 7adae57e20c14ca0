package auth

// MenuItem is one entry of the navigation rendered for a role.
type MenuItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

var (
	itemDashboard     = MenuItem{Key: "dashboard", Label: "Dashboard", Path: "/dashboard"}
	itemUsers         = MenuItem{Key: "users", Label: "Users", Path: "/users"}
	itemDoctors       = MenuItem{Key: "doctors", Label: "Doctors", Path: "/doctors"}
	itemPatients      = MenuItem{Key: "patients", Label: "Patients", Path: "/patients"}
	itemAppointments  = MenuItem{Key: "appointments", Label: "Appointments", Path: "/appointments"}
	itemSchedule      = MenuItem{Key: "schedule", Label: "My Schedule", Path: "/schedule"}
	itemRecords       = MenuItem{Key: "medical_records", Label: "Medical Records", Path: "/medical-records"}
	itemPrescriptions = MenuItem{Key: "prescriptions", Label: "Prescriptions", Path: "/prescriptions"}
	itemMyPatients    = MenuItem{Key: "my_patients", Label: "My Patients", Path: "/my-patients"}
	itemBook          = MenuItem{Key: "book", Label: "Book Appointment", Path: "/book"}
	itemProfile       = MenuItem{Key: "profile", Label: "Profile", Path: "/profile"}
)

var menus = map[Role][]MenuItem{
	RoleAdmin: {
		itemDashboard, itemUsers, itemDoctors, itemPatients,
		itemAppointments, itemRecords, itemPrescriptions,
	},
	RoleDoctor: {
		itemDashboard, itemSchedule, itemAppointments, itemMyPatients,
		itemRecords, itemPrescriptions, itemProfile,
	},
	RoleNurse: {
		itemDashboard, itemPatients, itemAppointments, itemDoctors, itemProfile,
	},
	RoleReceptionist: {
		itemDashboard, itemPatients, itemAppointments, itemDoctors, itemProfile,
	},
	RolePatient: {
		itemDashboard, itemBook, itemAppointments, itemRecords, itemPrescriptions, itemProfile,
	},
}

// MenuFor returns the navigation for role. Unknown roles get an empty menu.
func MenuFor(role Role) []MenuItem {
	items := menus[role]
	out := make([]MenuItem, len(items))
	copy(out, items)
	return out
}
