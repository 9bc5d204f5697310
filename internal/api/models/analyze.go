// Package models defines the request and response bodies of the HTTP API.
package models

import "github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AnalyzeResponse is the success body of /analyze.
type AnalyzeResponse struct {
	Status   string           `json:"status"`
	Data     *analysis.Result `json:"data"`
	Insights []string         `json:"ai_insights"`
}

// NewAnalyzeResponse wraps a comparison result. ai_insights is always an
// array, empty when fewer than two drivers were requested.
func NewAnalyzeResponse(result *analysis.Result) *AnalyzeResponse {
	insights := result.Insights
	if insights == nil {
		insights = []string{}
	}
	return &AnalyzeResponse{Status: StatusSuccess, Data: result, Insights: insights}
}

// ErrorResponse is the failure body of /analyze when the request was valid
// but the comparison could not be produced.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Status: StatusError, Message: message}
}
