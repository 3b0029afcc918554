package apperrors

// Error codes grouped by domain
const (
	// Authentication and authorization
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	CodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"

	// Validation
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	CodeWeakPassword     ErrorCode = "WEAK_PASSWORD"

	// Resources
	CodeUserNotFound  ErrorCode = "USER_NOT_FOUND"
	CodeDreamNotFound ErrorCode = "DREAM_NOT_FOUND"
	CodeNotFound      ErrorCode = "NOT_FOUND"

	// Business logic
	CodeEmailAlreadyExists ErrorCode = "EMAIL_ALREADY_EXISTS"
	CodeUserNotVerified    ErrorCode = "USER_NOT_VERIFIED"
	CodeUsageLimitReached  ErrorCode = "USAGE_LIMIT_REACHED"
	CodeInvalidPlan        ErrorCode = "INVALID_PLAN"
	CodeNoSubscription     ErrorCode = "NO_SUBSCRIPTION"

	// External providers
	CodeStripeError      ErrorCode = "STRIPE_ERROR"
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"
	CodeAppleError       ErrorCode = "APPLE_VERIFY_ERROR"
	CodeAIProviderError  ErrorCode = "AI_PROVIDER_ERROR"

	// System errors
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError ErrorCode = "DATABASE_ERROR"
)
