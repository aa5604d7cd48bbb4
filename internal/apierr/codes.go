package apierr

// Code is a stable identifier for a class of API failure.
type Code string

const (
	// network
	CodeNetworkError Code = "NETWORK_ERROR"
	CodeTimeout      Code = "TIMEOUT"
	CodeOffline      Code = "OFFLINE"

	// authentication
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"

	// authorization
	CodeForbidden               Code = "FORBIDDEN"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"

	// input
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeInvalidInput    Code = "INVALID_INPUT"

	// server
	CodeServerError        Code = "SERVER_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"

	// resource
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeRateLimited Code = "RATE_LIMITED"

	CodeUnknown Code = "UNKNOWN"
)

// User facing messages. Never show Error.Message or Error.Details to end users.
const (
	msgNetwork      = "Unable to connect to the server. Please check your internet connection."
	msgTimeout      = "The request took too long. Please try again."
	msgOffline      = "You are offline. The request could not be completed."
	msgTokenExpired = "Your session has expired. Please log in again."
	msgUnauthorized = "Invalid credentials. Please check your email and password."
	msgForbidden    = "You do not have permission to perform this action."
	msgNotFound     = "The requested resource was not found."
	msgConflict     = "This resource already exists."
	msgValidation   = "Please check your input and try again."
	msgRateLimited  = "Too many requests. Please wait a moment and try again."
	msgServer       = "A server error occurred. Please try again later."
	msgUnknown      = "An unexpected error occurred. Please try again."
)
