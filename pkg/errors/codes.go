package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every module.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	// ErrCodeConcurrencyNoop marks a duplicate creation or a lost
	// compare-and-swap race.  Services absorb it as success; it never reaches
	// an API response.
	ErrCodeConcurrencyNoop ErrorCode = "COMMON_015"
)

// Schedule module error codes.
const (
	ErrCodeScheduleNotFound       ErrorCode = "SCH_001"
	ErrCodeScheduleConflict       ErrorCode = "SCH_002"
	ErrCodeFrequencyInvalid       ErrorCode = "SCH_003"
	ErrCodeBaseDateInvalid        ErrorCode = "SCH_004"
	ErrCodeScheduleNotActive      ErrorCode = "SCH_005"
	ErrCodeRecurrenceEventInvalid ErrorCode = "SCH_006"
)

// Deadline module error codes.
const (
	ErrCodeDeadlineNotFound   ErrorCode = "DLN_001"
	ErrCodeDeadlineTerminal   ErrorCode = "DLN_002"
	ErrCodeTransitionInvalid  ErrorCode = "DLN_003"
	ErrCodeDeadlineCursorBad  ErrorCode = "DLN_004"
)

// Risk module error codes.
const (
	ErrCodeRiskScoreNotFound  ErrorCode = "RISK_001"
	ErrCodeRiskComputeFailed  ErrorCode = "RISK_002"
	ErrCodeSiteNotFound       ErrorCode = "RISK_003"
	ErrCodeObligationNotFound ErrorCode = "RISK_004"
)

// HTTPStatus maps an ErrorCode to the HTTP status most handlers should emit.
// Unknown codes map to 500 so that a forgotten mapping fails closed.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeFrequencyInvalid,
		ErrCodeBaseDateInvalid, ErrCodeRecurrenceEventInvalid, ErrCodeDeadlineCursorBad:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeScheduleNotFound, ErrCodeDeadlineNotFound,
		ErrCodeRiskScoreNotFound, ErrCodeSiteNotFound, ErrCodeObligationNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeScheduleConflict, ErrCodeScheduleNotActive,
		ErrCodeDeadlineTerminal, ErrCodeTransitionInvalid:
		return http.StatusConflict
	case ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
