package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidTaskKey  = 1004
	ErrCodeMissingRequired = 1009
	ErrCodeInvalidSprint   = 1010
	ErrCodeInvalidLabel    = 1011
	ErrCodeInvalidBoardID  = 1012

	// Domain state (2xxx)
	ErrCodeAccountNotLinked = 2101
	ErrCodeAccountInvalid   = 2102

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal        = 4001
	ErrCodeStoreFailure    = 4002
	ErrCodeUpstreamFailure = 4003
	ErrCodeUpstreamTimeout = 4004
	ErrCodeNotImplemented  = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 412:
		return ErrCodeAccountNotLinked
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	case 504:
		return ErrCodeUpstreamTimeout
	default:
		return 0
	}
}
