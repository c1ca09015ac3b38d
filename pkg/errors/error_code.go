package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidCadence       ErrorCode = 102
	ErrCodeInvalidExchange      ErrorCode = 103
	ErrCodeInsufficientData     ErrorCode = 104

	// File and parse errors (200-299)
	ErrCodeFileUnreadable      ErrorCode = 200
	ErrCodeSeriesUnparseable   ErrorCode = 201
	ErrCodeTickerListMissing   ErrorCode = 202
	ErrCodeCanonicalWriteError ErrorCode = 203

	// Merge errors (300-399)
	ErrCodeMergeFailed ErrorCode = 300

	// Forecast model errors (400-499)
	ErrCodeModelFailed       ErrorCode = 400
	ErrCodeModelNotAvailable ErrorCode = 401
	ErrCodeHistoryTooShort   ErrorCode = 402

	// Reconciliation errors (500-599)
	ErrCodeReconcileFailed ErrorCode = 500
	ErrCodeArtifactFailed  ErrorCode = 501

	// Market data fetch errors (700-799)
	ErrCodeFetchFailed      ErrorCode = 700
	ErrCodeFetchEmpty       ErrorCode = 701
	ErrCodeFetchParseFailed ErrorCode = 702
	ErrCodeProviderError    ErrorCode = 703
)
