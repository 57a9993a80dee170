package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrTooManyRequests = 1003
	ErrBadRequest      = 1004
	ErrServiceUnavail  = 1005

	// Analysis errors (6000-6999)
	ErrAnalysisInvalidInput     = 6000
	ErrAnalysisGenerationFailed = 6001
	ErrAnalysisSearchFailed     = 6002
	ErrAnalysisExtractionFailed = 6003
	ErrAnalysisCanceled         = 6004

	// Search provider errors (7000-7999)
	ErrSearchProviderConfig      = 7000
	ErrSearchProviderUnavailable = 7001
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Analysis errors
	ErrAnalysisInvalidInput:     {ErrAnalysisInvalidInput, http.StatusBadRequest, "Invalid analysis request"},
	ErrAnalysisGenerationFailed: {ErrAnalysisGenerationFailed, http.StatusBadGateway, "Search query generation failed"},
	ErrAnalysisSearchFailed:     {ErrAnalysisSearchFailed, http.StatusBadGateway, "All search queries failed"},
	ErrAnalysisExtractionFailed: {ErrAnalysisExtractionFailed, http.StatusBadGateway, "Competitor extraction failed"},
	ErrAnalysisCanceled:         {ErrAnalysisCanceled, http.StatusBadRequest, "Analysis canceled by client"},

	// Search provider errors
	ErrSearchProviderConfig:      {ErrSearchProviderConfig, http.StatusInternalServerError, "Invalid search provider configuration"},
	ErrSearchProviderUnavailable: {ErrSearchProviderUnavailable, http.StatusBadGateway, "Search provider unavailable"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsSuccess checks if the code represents success
func IsSuccess(code int) bool {
	return code == Success
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
