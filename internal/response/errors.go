package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"
	ErrStepOutOfRange   ErrCode = "STEP_OUT_OF_RANGE"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrNotAssigned        ErrCode = "TEST_NOT_ASSIGNED"
	ErrNoAttemptsLeft     ErrCode = "NO_ATTEMPTS_LEFT"
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCompleted   ErrCode = "SESSION_COMPLETED"
	ErrSessionInProgress  ErrCode = "SESSION_IN_PROGRESS"
	ErrSessionInUse       ErrCode = "SESSION_IN_USE"
	ErrNotInModule        ErrCode = "NOT_IN_MODULE"
	ErrInvalidTransition  ErrCode = "INVALID_TRANSITION"
	ErrQuestionOutOfRange ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrStepExpired        ErrCode = "STEP_EXPIRED"
	ErrContentUnavailable ErrCode = "CONTENT_UNAVAILABLE"
	ErrPersistFailed      ErrCode = "PERSIST_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrDependencyExists:
		return "The resource is still referenced by other data."
	case ErrStepOutOfRange:
		return "Step index is out of range."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrNotAssigned:
		return "This test is not assigned to you."
	case ErrNoAttemptsLeft:
		return "You have no attempts left for this test."
	case ErrSessionNotFound:
		return "No session found for this test."
	case ErrSessionCompleted:
		return "This session has already been completed."
	case ErrSessionInProgress:
		return "Results are available once the session is finished."
	case ErrSessionInUse:
		return "This session is already open on another connection."
	case ErrNotInModule:
		return "Answers can only be changed inside a module."
	case ErrInvalidTransition:
		return "That move is not possible from the current step."
	case ErrQuestionOutOfRange:
		return "Question index is out of range."
	case ErrStepExpired:
		return "Time for this step has run out."
	case ErrContentUnavailable:
		return "Module content could not be loaded. Please retry."
	case ErrPersistFailed:
		return "Progress could not be saved. Please retry."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}
