package api

import (
	"github.com/gin-gonic/gin"

	"github.com/shineum/mail-relay-lite/internal/metrics"
)

// Error codes returned in the JSON error envelope.
const (
	CodeMissingRecipient     = "MISSING_RECIPIENT"
	CodeMissingFields        = "MISSING_FIELDS"
	CodeImageUnreadable      = "IMAGE_UNREADABLE"
	CodeAttachmentUnreadable = "ATTACHMENT_UNREADABLE"
	CodeSMTPError            = "SMTP_ERROR"
	CodeSendFailed           = "SEND_FAILED"
	CodePDFFailed            = "PDF_FAILED"
	CodeRelayBusy            = "RELAY_BUSY"
	CodeInternalError        = "INTERNAL_ERROR"
)

// APIError is the body of every error response.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SuccessResponse is the body of a successful send.
type SuccessResponse struct {
	Message string `json:"message"`
}

// RespondError writes an error envelope and counts it by code.
func RespondError(c *gin.Context, status int, code, message string) {
	metrics.APIErrors.WithLabelValues(code).Inc()
	c.AbortWithStatusJSON(status, APIError{
		Error: message,
		Code:  code,
	})
}
