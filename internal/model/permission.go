package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionMediaUpload allows uploading question media and exam papers.
	PermissionMediaUpload Permission = "media:upload"

	// PermissionStudentsRead allows viewing student lists.
	PermissionStudentsRead Permission = "students:read"

	// PermissionStudentsApprove allows approving or rejecting registrations.
	PermissionStudentsApprove Permission = "students:approve"

	// PermissionStudentsResetSession allows resetting a student's login session.
	PermissionStudentsResetSession Permission = "students:reset_session"

	// PermissionExamsRead allows viewing exams and their questions.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating, updating and deleting exams.
	PermissionExamsWrite Permission = "exams:write"

	// PermissionReportsRead allows viewing results and proctor logs.
	PermissionReportsRead Permission = "reports:read"

	// PermissionProctorMonitor allows attaching to the live proctoring feed.
	PermissionProctorMonitor Permission = "proctor:monitor"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionMediaUpload,
	PermissionStudentsRead,
	PermissionStudentsApprove,
	PermissionStudentsResetSession,
	PermissionExamsRead,
	PermissionExamsWrite,
	PermissionReportsRead,
	PermissionProctorMonitor,
}

// PermissionCodes returns AllPermissions as plain strings.
func PermissionCodes() []string {
	codes := make([]string, len(AllPermissions))
	for i, p := range AllPermissions {
		codes[i] = string(p)
	}
	return codes
}
