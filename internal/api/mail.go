package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shineum/mail-relay-lite/internal/compose"
	"github.com/shineum/mail-relay-lite/internal/email"
	"github.com/shineum/mail-relay-lite/internal/metrics"
	"github.com/shineum/mail-relay-lite/internal/provider"
)

// SentMessage is the body returned after a successful delivery.
const SentMessage = "Email sent successfully!"

const missingRecipientMessage = "Missing recipient email address"

// MailHandler serves POST /send-email. At most cap(slots) deliveries run at
// once; further requests are turned away with 503 instead of queueing.
type MailHandler struct {
	provider provider.Provider
	defaults compose.Defaults
	slots    chan struct{}
	log      *zap.Logger
}

// NewMailHandler creates a MailHandler delivering through p.
func NewMailHandler(p provider.Provider, defaults compose.Defaults, maxConcurrent int, log *zap.Logger) *MailHandler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &MailHandler{
		provider: p,
		defaults: defaults,
		slots:    make(chan struct{}, maxConcurrent),
		log:      log,
	}
}

// Register adds the send-email endpoint.
func (h *MailHandler) Register(r gin.IRoutes) {
	r.POST("/send-email", h.sendEmail)
}

func (h *MailHandler) sendEmail(c *gin.Context) {
	var req compose.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondUnexpected(c, err)
		return
	}
	if strings.TrimSpace(req.To) == "" {
		RespondError(c, http.StatusBadRequest, CodeMissingRecipient, missingRecipientMessage)
		return
	}

	if !h.acquire(c) {
		return
	}
	defer h.release()

	log := h.requestLogger(c, req.To, req.Subject)

	msg, err := compose.Build(req, h.defaults)
	if err != nil {
		h.respondBuildError(c, log, err)
		return
	}
	if !h.deliver(c, log, msg) {
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: SentMessage})
}

// acquire takes a delivery slot, answering 503 when none is free.
func (h *MailHandler) acquire(c *gin.Context) bool {
	select {
	case h.slots <- struct{}{}:
		return true
	default:
		RespondError(c, http.StatusServiceUnavailable, CodeRelayBusy, "Relay busy, try again later")
		return false
	}
}

func (h *MailHandler) release() {
	<-h.slots
}

func (h *MailHandler) requestLogger(c *gin.Context, to, subject string) *zap.Logger {
	return h.log.With(
		zap.String("request_id", RequestID(c)),
		zap.String("provider", h.provider.Name()),
		zap.String("to", to),
		zap.String("subject", subject),
	)
}

// deliver hands msg to the provider and writes the error response on
// failure. It reports whether the message was accepted.
func (h *MailHandler) deliver(c *gin.Context, log *zap.Logger, msg *email.Email) bool {
	start := time.Now()
	err := h.provider.Send(c.Request.Context(), msg)
	metrics.ObserveDelivery(h.provider.Name(), start, err)
	if err != nil {
		log.Error("Failed to send email", zap.Error(err))
		var te *provider.TransportError
		if errors.As(err, &te) {
			RespondError(c, http.StatusInternalServerError, CodeSMTPError, "SMTP error occurred: "+err.Error())
			return false
		}
		RespondError(c, http.StatusInternalServerError, CodeSendFailed, "Error sending email: "+err.Error())
		return false
	}

	log.Info("Email sent", zap.String("message_id", msg.MessageID))
	return true
}

func (h *MailHandler) respondBuildError(c *gin.Context, log *zap.Logger, err error) {
	log.Error("Failed to compose email", zap.Error(err))

	var fe *compose.FileError
	switch {
	case errors.Is(err, compose.ErrMissingRecipient):
		RespondError(c, http.StatusBadRequest, CodeMissingRecipient, missingRecipientMessage)
	case errors.As(err, &fe) && fe.Kind == compose.KindImage:
		RespondError(c, http.StatusInternalServerError, CodeImageUnreadable, "Failed to attach image: "+err.Error())
	case errors.As(err, &fe):
		RespondError(c, http.StatusInternalServerError, CodeAttachmentUnreadable, "Failed to attach file: "+err.Error())
	default:
		respondUnexpected(c, err)
	}
}

// respondUnexpected answers 500 for failures outside the mapped cases,
// including request bodies that are not valid JSON.
func respondUnexpected(c *gin.Context, err error) {
	RespondError(c, http.StatusInternalServerError, CodeInternalError, "Unexpected error: "+err.Error())
}
