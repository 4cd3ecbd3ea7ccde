package connectors

import "fmt"

// FlexErrorCodes maps IBKR Flex Web Service error codes to their documented messages.
var FlexErrorCodes = map[int]string{
	1001: "Statement could not be generated at this time. Please try again shortly.",
	1003: "Statement is not available.",
	1004: "Statement is incomplete at this time. Please try again shortly.",
	1005: "Settlement data is not ready at this time. Please try again shortly.",
	1006: "FIFO P/L data is not ready at this time. Please try again shortly.",
	1007: "MTM P/L data is not ready at this time. Please try again shortly.",
	1008: "MTM and FIFO P/L data is not ready at this time. Please try again shortly.",
	1009: "The server is under heavy load. Statement could not be generated at this time. Please try again shortly.",
	1010: "Legacy Flex Queries are no longer supported. Please convert over to Activity Flex.",
	1011: "Service account is inactive.",
	1012: "Token has expired.",
	1013: "IP restriction.",
	1014: "Query is invalid.",
	1015: "Token is invalid.",
	1016: "Account in invalid.",
	1017: "Reference code is invalid.",
	1018: "Too many requests have been made from this token. Please try again shortly.",
	1019: "Statement generation in progress. Please try again shortly.",
	1020: "Invalid request or unable to validate request.",
	1021: "Statement could not be retrieved at this time. Please try again shortly.",
}

// GetErrorMsg returns the documented message for a Flex error code.
// If the code is unknown, returns a generic message including the code.
func GetErrorMsg(code int) string {
	if msg, ok := FlexErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_FLEX_ERROR_%d", code)
}

// retryableFlexCodes are the codes that mean the statement is still being
// prepared or the service is briefly saturated, not that the request itself
// is wrong.
var retryableFlexCodes = map[int]struct{}{
	1001: {},
	1004: {},
	1009: {},
	1018: {},
	1019: {},
}

// IsRetryableFlexCode reports whether a Flex error code is worth another
// attempt after a wait.
func IsRetryableFlexCode(code int) bool {
	_, ok := retryableFlexCodes[code]
	return ok
}
