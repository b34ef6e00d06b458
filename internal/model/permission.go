package model

// Permission represents a string code for a specific administrative action.
type Permission string

const (
	// PermissionQuestionsWrite allows authoring questions and modules.
	PermissionQuestionsWrite Permission = "questions:write"

	// PermissionQuestionsRead allows viewing questions and modules.
	PermissionQuestionsRead Permission = "questions:read"

	// PermissionTestsRead allows viewing tests and their time summaries.
	PermissionTestsRead Permission = "tests:read"

	// PermissionTestsWrite allows composing, editing and deleting tests.
	PermissionTestsWrite Permission = "tests:write"

	// PermissionStudentsAssign allows granting test attempts to students.
	PermissionStudentsAssign Permission = "students:assign"

	// PermissionResultsRead allows viewing any student's results.
	PermissionResultsRead Permission = "results:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionQuestionsWrite,
	PermissionQuestionsRead,
	PermissionTestsRead,
	PermissionTestsWrite,
	PermissionStudentsAssign,
	PermissionResultsRead,
}
