package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",
	CodeInvalidThreshold:   "Profit threshold out of range",
	CodeInvalidBounds:      "Safety bounds out of range",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	// Pool normalization errors
	CodeMissingAddress:     "Pool record has no identifiable address",
	CodeInvalidAddress:     "Pool address is not base58-shaped",
	CodeMissingMint:        "Pool record has no mint pair",
	CodeDecimalsOutOfRange: "Token decimals outside [0, 18]",
	CodeAmbiguousReserve:   "Reserve field cannot be classified as amount or vault",
	CodeInvariantViolated:  "Canonical pool invariant violated",

	// Reserve enrichment errors
	CodeOracleTimeout:       "Reserve oracle timed out",
	CodeOracleDecodeFailure: "Vault account balance could not be decoded",
	CodeNoReserveSource:     "No reserve source available for pool",

	// Arithmetic errors
	CodeDivisionByZero: "Division by zero",
	CodeNegativeRoot:   "Square root of negative value",
	CodeOverflow:       "Arithmetic overflow",

	// Unit conversion errors
	CodeNegativeAtomic: "Negative amount cannot become atomic",
	CodePrecisionLoss:  "Conversion would lose precision",

	// Swap leg errors
	CodeMintMismatch:    "Input mint does not belong to pool",
	CodeMissingReserves: "Pool reserves not populated",
	CodeNeedsQuoter:     "Swap requires an external quoter",
	CodeZeroOutput:      "Swap produced zero output",

	// RPC oracle adapter errors
	CodeRPCError:        "RPC call failed",
	CodeCircuitOpen:     "Circuit breaker open",
	CodeCircuitHalfOpen: "Circuit breaker half-open",
}
