package access

// Route names. They double as rule policy names unless a route sets Rules
// to something else.
const (
	RouteViewDepartments  = "viewDepartments"
	RouteViewDepartment   = "viewDepartment"
	RouteCreateDepartment = "createDepartment"
	RouteUpdateDepartment = "updateDepartment"
	RouteDeleteDepartment = "deleteDepartment"

	RouteViewAllDocuments   = "viewAllDocuments"
	RouteViewDocument       = "viewDocument"
	RouteCreateDocument     = "createDocument"
	RouteUpdateDocument     = "updateDocument"
	RouteDeleteDocument     = "deleteDocument"
	RouteGrantDocument      = "grantDocumentPermission"
	RouteRevokeDocument     = "revokeDocumentPermission"
	RouteListDocumentGrants = "viewDocumentPermissions"

	RouteViewAllProfiles = "viewAllProfiles"
	RouteViewProfile     = "viewProfile"
	RouteCreateProfile   = "createProfile"
	RouteUpdateProfile   = "updateProfile"
	RouteDeleteProfile   = "deleteProfile"

	RouteViewAllSalaries = "viewAllSalaries"
	RouteViewSalary      = "viewSalary"
	RouteCreateSalary    = "createSalary"
	RouteUpdateSalary    = "updateSalary"
	RouteDeleteSalary    = "deleteSalary"

	RouteViewAllLeaveRequests = "viewAllLeaveRequests"
	RouteViewLeaveRequest     = "viewLeaveRequest"
	RouteCreateLeaveRequest   = "createLeaveRequest"
	RouteApproveLeave         = "approveLeave"
	RouteDeleteLeaveRequest   = "deleteLeaveRequest"

	RouteGetAllUsers = "getAllUsers"
	RouteGetUser     = "getUserById"
	RouteCreateUser  = "createUser"
	RouteUpdateUser  = "updateUser"
	RouteDeleteUser  = "deleteUser"

	RouteViewRoles     = "viewRoles"
	RouteAssignRole    = "assignRole"
	RouteRemoveRole    = "removeRole"
	RouteViewUserRoles = "viewUserRoles"

	RouteRequestRoleChange  = "requestRoleChange"
	RouteApproveRoleChange  = "approveRoleChange"
	RouteRejectRoleChange   = "rejectRoleChange"
	RouteViewPendingRoleReq = "viewPendingRoleRequests"

	RouteViewRules  = "viewRules"
	RouteCreateRule = "createRule"
	RouteDeleteRule = "deleteRule"

	RouteViewAuditEvents   = "viewAuditEvents"
	RouteStreamAuditEvents = "streamAuditEvents"
)

// Route wires one protected action to its gates. Empty MAC or DAC actions
// and an empty Rules name leave that gate out.
type Route struct {
	Name     string
	Resource ResourceType
	Roles    []string
	MAC      Action
	DAC      Action
	ABAC     bool
	Rules    string
	// LabelGuard rejects bodies that try to set a sensitivity label.
	LabelGuard bool
}

func (r Route) needsAttributes() bool {
	return r.MAC != "" || r.DAC != "" || r.ABAC || r.Rules == RouteApproveLeave
}

func (r Route) needsDepartment() bool {
	return r.MAC != "" || r.ABAC
}

var (
	everyone  = []string{RoleEmployee, RoleManager, RoleAdmin}
	adminOnly = []string{RoleAdmin}
	managers  = []string{RoleAdmin, RoleManager}
)

// DefaultRoutes returns the route table for the HR API.
func DefaultRoutes() map[string]Route {
	routes := []Route{
		{Name: RouteViewDepartments, Resource: ResourceDepartment, Roles: everyone, ABAC: true},
		{Name: RouteViewDepartment, Resource: ResourceDepartment, Roles: managers, MAC: ActionView, ABAC: true},
		{Name: RouteCreateDepartment, Resource: ResourceDepartment, Roles: adminOnly},
		{Name: RouteUpdateDepartment, Resource: ResourceDepartment, Roles: adminOnly, ABAC: true},
		{Name: RouteDeleteDepartment, Resource: ResourceDepartment, Roles: adminOnly, ABAC: true},

		{Name: RouteViewAllDocuments, Resource: ResourceDocument, Roles: everyone},
		{Name: RouteViewDocument, Resource: ResourceDocument, Roles: everyone, DAC: ActionView, ABAC: true},
		{Name: RouteCreateDocument, Resource: ResourceDocument, Roles: everyone, LabelGuard: true},
		{Name: RouteUpdateDocument, Resource: ResourceDocument, Roles: adminOnly, DAC: ActionEdit, ABAC: true, LabelGuard: true},
		{Name: RouteDeleteDocument, Resource: ResourceDocument, Roles: everyone, DAC: ActionDelete, ABAC: true},
		{Name: RouteGrantDocument, Resource: ResourceDocument, Roles: everyone},
		{Name: RouteRevokeDocument, Resource: ResourceDocument, Roles: everyone},
		{Name: RouteListDocumentGrants, Resource: ResourceDocument, Roles: everyone},

		{Name: RouteViewAllProfiles, Resource: ResourceEmployeeProfile, Roles: managers},
		{Name: RouteViewProfile, Resource: ResourceEmployeeProfile, Roles: everyone, MAC: ActionView, ABAC: true},
		{Name: RouteCreateProfile, Resource: ResourceEmployeeProfile, Roles: adminOnly, MAC: ActionCreate, LabelGuard: true},
		{Name: RouteUpdateProfile, Resource: ResourceEmployeeProfile, Roles: adminOnly, MAC: ActionUpdate, ABAC: true, LabelGuard: true},
		{Name: RouteDeleteProfile, Resource: ResourceEmployeeProfile, Roles: adminOnly, MAC: ActionDelete},

		{Name: RouteViewAllSalaries, Resource: ResourceSalaryRecord, Roles: managers, MAC: ActionView, Rules: RouteViewAllSalaries},
		{Name: RouteViewSalary, Resource: ResourceSalaryRecord, Roles: everyone, MAC: ActionView, ABAC: true, Rules: RouteViewSalary},
		{Name: RouteCreateSalary, Resource: ResourceSalaryRecord, Roles: adminOnly, MAC: ActionCreate, Rules: RouteCreateSalary, LabelGuard: true},
		{Name: RouteUpdateSalary, Resource: ResourceSalaryRecord, Roles: adminOnly, MAC: ActionUpdate, ABAC: true, Rules: RouteUpdateSalary, LabelGuard: true},
		{Name: RouteDeleteSalary, Resource: ResourceSalaryRecord, Roles: adminOnly, MAC: ActionDelete, ABAC: true, Rules: RouteDeleteSalary},

		{Name: RouteViewAllLeaveRequests, Resource: ResourceLeaveRequest, Roles: []string{RoleManager, RoleHR, RoleAdmin}, Rules: RouteViewLeaveRequest},
		{Name: RouteViewLeaveRequest, Resource: ResourceLeaveRequest, Roles: []string{RoleEmployee, RoleManager, RoleHR, RoleAdmin}, MAC: ActionView, Rules: RouteViewLeaveRequest},
		{Name: RouteCreateLeaveRequest, Resource: ResourceLeaveRequest, Roles: []string{RoleEmployee}, Rules: RouteCreateLeaveRequest},
		{Name: RouteApproveLeave, Resource: ResourceLeaveRequest, Roles: []string{RoleManager, RoleHR}, MAC: ActionUpdate, Rules: RouteApproveLeave},
		{Name: RouteDeleteLeaveRequest, Resource: ResourceLeaveRequest, Roles: adminOnly, Rules: RouteDeleteLeaveRequest},

		{Name: RouteGetAllUsers, Resource: ResourceUser, Roles: adminOnly, MAC: ActionView, Rules: RouteGetAllUsers},
		{Name: RouteGetUser, Resource: ResourceUser, Roles: everyone, MAC: ActionView, ABAC: true, Rules: RouteGetUser},
		{Name: RouteCreateUser, Resource: ResourceUser, Roles: adminOnly, MAC: ActionCreate, Rules: RouteCreateUser, LabelGuard: true},
		{Name: RouteUpdateUser, Resource: ResourceUser, Roles: []string{RoleAdmin, RoleEmployee}, MAC: ActionUpdate, ABAC: true, Rules: RouteUpdateUser, LabelGuard: true},
		{Name: RouteDeleteUser, Resource: ResourceUser, Roles: adminOnly, MAC: ActionDelete, ABAC: true, Rules: RouteDeleteUser},

		{Name: RouteViewRoles, Resource: ResourceRole, Roles: managers},
		{Name: RouteAssignRole, Resource: ResourceRole, Roles: adminOnly, Rules: RouteAssignRole},
		{Name: RouteRemoveRole, Resource: ResourceRole, Roles: adminOnly, Rules: RouteRemoveRole},
		{Name: RouteViewUserRoles, Resource: ResourceRole, Roles: managers, Rules: RouteViewUserRoles},

		{Name: RouteRequestRoleChange, Resource: ResourceRoleChangeRequest, Roles: []string{RoleEmployee, RoleManager}, Rules: RouteRequestRoleChange},
		{Name: RouteApproveRoleChange, Resource: ResourceRoleChangeRequest, Roles: adminOnly, Rules: RouteApproveRoleChange},
		{Name: RouteRejectRoleChange, Resource: ResourceRoleChangeRequest, Roles: adminOnly, Rules: RouteRejectRoleChange},
		{Name: RouteViewPendingRoleReq, Resource: ResourceRoleChangeRequest, Roles: adminOnly, Rules: RouteViewPendingRoleReq},

		{Name: RouteViewRules, Resource: ResourceRole, Roles: adminOnly},
		{Name: RouteCreateRule, Resource: ResourceRole, Roles: adminOnly},
		{Name: RouteDeleteRule, Resource: ResourceRole, Roles: adminOnly},

		{Name: RouteViewAuditEvents, Resource: ResourceRole, Roles: adminOnly},
		{Name: RouteStreamAuditEvents, Resource: ResourceRole, Roles: adminOnly},
	}

	table := make(map[string]Route, len(routes))
	for _, r := range routes {
		table[r.Name] = r
	}
	return table
}
