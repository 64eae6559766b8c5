package rbac

// Permission is an atomic capability granted through the role tables.
type Permission string

const (
	PermSiteSettings   Permission = "site_settings"
	PermUserManagement Permission = "user_management"
	PermViewAllData    Permission = "view_all_data"
	PermViewOwnData    Permission = "view_own_data"
	PermAnalytics      Permission = "analytics"
	PermLeads          Permission = "leads"
	PermReports        Permission = "reports"
	PermAPIAccess      Permission = "api_access"
	PermFileUpload     Permission = "file_upload"
	PermFileExport     Permission = "file_export"
)

// View is a navigable portal section. Views are gated independently from
// permissions: the two tables happen to align today but are configured
// separately on purpose.
type View string

const (
	ViewDashboard      View = "dashboard"
	ViewLeads          View = "leads"
	ViewAnalytics      View = "analytics"
	ViewReports        View = "reports"
	ViewUserManagement View = "user_management"
	ViewSiteSettings   View = "site_settings"
	ViewFileUpload     View = "file_upload"
	ViewAPITest        View = "api_test"
)

// rolePermissions maps every role to its granted permission set. A role
// missing from the table degrades to the empty set, never to an error.
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermSiteSettings,
		PermUserManagement,
		PermViewAllData,
		PermAnalytics,
		PermLeads,
		PermReports,
		PermAPIAccess,
		PermFileUpload,
		PermFileExport,
	},
	RoleAdmin: {
		// Everything the super admin has except site settings.
		PermUserManagement,
		PermViewAllData,
		PermAnalytics,
		PermLeads,
		PermReports,
		PermAPIAccess,
		PermFileUpload,
		PermFileExport,
	},
	RoleAgency: {
		// Agency accounts only ever see their own data. User management for
		// agency owners is granted dynamically, see CanAccessUserManagement.
		PermViewOwnData,
		PermLeads,
		PermFileUpload,
	},
}

// roleViews maps every role to the portal sections it may navigate to.
var roleViews = map[Role][]View{
	RoleSuperAdmin: {
		ViewDashboard,
		ViewLeads,
		ViewAnalytics,
		ViewReports,
		ViewUserManagement,
		ViewSiteSettings,
		ViewFileUpload,
		ViewAPITest,
	},
	RoleAdmin: {
		ViewDashboard,
		ViewLeads,
		ViewAnalytics,
		ViewReports,
		ViewUserManagement,
		ViewFileUpload,
		ViewAPITest,
	},
	RoleAgency: {
		ViewDashboard,
		ViewLeads,
		ViewFileUpload,
	},
}
