package domain

// Capability names a permission checked against the caller's role.
type Capability string

const (
	CapLaunchAccess    Capability = "launch:access"
	CapAdminPanel      Capability = "admin:access_panel"
	CapUsersManage     Capability = "users:manage"
	CapAuditRead       Capability = "audit:read"
	CapTrainingManage  Capability = "training:manage"
	CapMaintenanceEdit Capability = "maintenance:edit"
	CapDeveloperTools  Capability = "developer:tools_access"
	CapScheduleCreate  Capability = "schedule:create"
	CapScheduleEdit    Capability = "schedule:edit"
	CapScheduleDelete  Capability = "schedule:delete"
	CapPersonnelManage Capability = "personnel:manage"
	CapAircraftManage  Capability = "aircraft:manage"
)
