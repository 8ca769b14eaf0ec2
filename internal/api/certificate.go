package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shineum/mail-relay-lite/internal/certificate"
	"github.com/shineum/mail-relay-lite/internal/compose"
)

// Messages returned by the certificate endpoints.
const (
	PDFGeneratedMessage  = "PDF generated successfully"
	CertificateSent      = "Email sent successfully with PDF attachment!"
	missingFieldsMessage = "All fields are required."
	pdfFailedMessage     = "An error occurred while generating the PDF."
)

// PDFResponse is the body returned by POST /generate-pdf.
type PDFResponse struct {
	Message        string `json:"message"`
	PDFDownloadURL string `json:"pdfDownloadUrl"`
}

// CertificateHandler serves the certificate endpoints. Mailed certificates
// share the delivery slots and provider of the mail handler.
type CertificateHandler struct {
	mail     *MailHandler
	renderer *certificate.Renderer
	store    *certificate.Store
	log      *zap.Logger
}

// NewCertificateHandler creates a CertificateHandler.
func NewCertificateHandler(mail *MailHandler, renderer *certificate.Renderer, store *certificate.Store, log *zap.Logger) *CertificateHandler {
	return &CertificateHandler{
		mail:     mail,
		renderer: renderer,
		store:    store,
		log:      log,
	}
}

// Register adds the certificate endpoints and serves stored certificates
// under certificate.DownloadPath.
func (h *CertificateHandler) Register(r gin.IRoutes) {
	r.POST("/generate-pdf", h.generate)
	r.POST("/send-certificate", h.send)
	r.Static(certificate.DownloadPath, h.store.Dir())
}

func (h *CertificateHandler) generate(c *gin.Context) {
	var req certificate.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondUnexpected(c, err)
		return
	}
	if missing := req.Missing(); len(missing) > 0 {
		h.log.Debug("certificate fields missing", zap.Strings("fields", missing))
		RespondError(c, http.StatusBadRequest, CodeMissingFields, missingFieldsMessage)
		return
	}

	log := h.log.With(zap.String("request_id", RequestID(c)))
	_, url, ok := h.issue(c, log, req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, PDFResponse{Message: PDFGeneratedMessage, PDFDownloadURL: url})
}

func (h *CertificateHandler) send(c *gin.Context) {
	var req certificate.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondUnexpected(c, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		RespondError(c, http.StatusBadRequest, CodeMissingRecipient, missingRecipientMessage)
		return
	}
	if missing := req.Missing(); len(missing) > 0 {
		h.log.Debug("certificate fields missing", zap.Strings("fields", missing))
		RespondError(c, http.StatusBadRequest, CodeMissingFields, missingFieldsMessage)
		return
	}

	if !h.mail.acquire(c) {
		return
	}
	defer h.mail.release()

	log := h.mail.requestLogger(c, req.Email, compose.CertificateSubject)

	pdf, _, ok := h.issue(c, log, req.Request)
	if !ok {
		return
	}

	msg, err := compose.BuildCertificate(req.Email, req.CustomerName, pdf, h.mail.defaults)
	if err != nil {
		h.mail.respondBuildError(c, log, err)
		return
	}
	if !h.mail.deliver(c, log, msg) {
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: CertificateSent})
}

// issue renders and stores the certificate. On failure it writes the error
// response and reports false.
func (h *CertificateHandler) issue(c *gin.Context, log *zap.Logger, req certificate.Request) ([]byte, string, bool) {
	name := h.store.NewName()
	url := h.store.URL(name)

	pdf, err := h.renderer.Render(req, url)
	if err == nil {
		err = h.store.Save(name, pdf)
	}
	if err != nil {
		log.Error("Failed to generate certificate", zap.Error(err))
		if errors.Is(err, certificate.ErrMissingFields) {
			RespondError(c, http.StatusBadRequest, CodeMissingFields, missingFieldsMessage)
			return nil, "", false
		}
		RespondError(c, http.StatusInternalServerError, CodePDFFailed, pdfFailedMessage)
		return nil, "", false
	}

	log.Info("Certificate generated", zap.String("file", name))
	return pdf, url, true
}
