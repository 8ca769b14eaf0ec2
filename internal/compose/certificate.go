package compose

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shineum/mail-relay-lite/internal/email"
)

// Certificate mail constants.
const (
	CertificateSubject     = "Your Certificate from Amman Chamber of Commerce"
	CertificateFilename    = "certificate.pdf"
	CertificateContentType = "application/pdf"
)

var certificateTemplate = template.Must(template.New("certificate").Parse(`<html>
    <body>
        <h1>Certificate Issuance</h1>
        <p>Dear <strong>{{.CustomerName}}</strong>,</p>
        <p>We are pleased to inform you that your certificate has been successfully issued. Please find your certificate attached to this email for your reference.</p>
        <p>Should you have any further questions or require assistance, please do not hesitate to contact us.</p>
        <p>Thank you for choosing the Amman Chamber of Commerce.</p>
        <p>{{.Signature}}</p>
        <p>&copy; {{.Year}} All rights reserved.</p>
    </body>
</html>
`))

type certificateData struct {
	CustomerName string
	Signature    template.HTML
	Year         int
}

// BuildCertificate assembles the message that delivers a rendered
// certificate to its recipient as certificate.pdf.
func BuildCertificate(to, customerName string, pdf []byte, d Defaults) (*email.Email, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, ErrMissingRecipient
	}

	var buf bytes.Buffer
	err := certificateTemplate.Execute(&buf, certificateData{
		CustomerName: customerName,
		Signature:    template.HTML(d.Signature),
		Year:         time.Now().Year(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	return &email.Email{
		From:      d.From,
		FromName:  d.FromName,
		To:        []string{to},
		Subject:   CertificateSubject,
		HtmlBody:  buf.String(),
		MessageID: newMessageID(d.From),
		Attachments: []email.Attachment{{
			Filename:    CertificateFilename,
			ContentType: CertificateContentType,
			Content:     pdf,
		}},
	}, nil
}
