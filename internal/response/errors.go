package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrAccountPending     ErrCode = "ACCOUNT_PENDING"
	ErrAccountRejected    ErrCode = "ACCOUNT_REJECTED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam attempts ─────────────────────────────────────────────────
	ErrExamUpcoming        ErrCode = "EXAM_UPCOMING"
	ErrExamExpired         ErrCode = "EXAM_EXPIRED"
	ErrAlreadyAttempted    ErrCode = "ALREADY_ATTEMPTED"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrInvalidTimeLimit    ErrCode = "INVALID_TIME_LIMIT"
	ErrNotEligible         ErrCode = "NOT_ELIGIBLE"
	ErrAttemptTimeExceeded ErrCode = "ATTEMPT_TIME_EXCEEDED"
	ErrNoActiveAttempt     ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrResultUnavailable   ErrCode = "RESULT_UNAVAILABLE"
	ErrNotVideoQuestion    ErrCode = "NOT_VIDEO_QUESTION"
	ErrSubmissionFailed    ErrCode = "SUBMISSION_FAILED"
	ErrPaperLocked         ErrCode = "PAPER_LOCKED"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrAccountPending:
		return "Your account is waiting for approval."
	case ErrAccountRejected:
		return "Your registration was rejected."

	// ─── Authorization ─────────────────────────────────────────────────
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

	// ─── Exam attempts ─────────────────────────────────────────────────
	case ErrExamUpcoming:
		return "This exam has not started yet."
	case ErrExamExpired:
		return "The deadline for this exam has passed."
	case ErrAlreadyAttempted:
		return "You have already attempted this exam."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrInvalidTimeLimit:
		return "This exam has an invalid time limit."
	case ErrNotEligible:
		return "This exam is not available for your course."
	case ErrAttemptTimeExceeded:
		return "The time limit for this attempt has been exceeded."
	case ErrNoActiveAttempt:
		return "You have no active attempt for this exam."
	case ErrResultUnavailable:
		return "No recent result is available."
	case ErrNotVideoQuestion:
		return "This question does not accept a video response."
	case ErrSubmissionFailed:
		return "Your submission could not be saved. Please try again."
	case ErrPaperLocked:
		return "The question paper is available after you submit the exam."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File exceeds the size limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
