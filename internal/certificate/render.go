package certificate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Asset file names looked up in Options.AssetsDir.
const (
	AssetLeftLogo  = "left-logo.png"
	AssetRightLogo = "right-logo.png"
	AssetStamp     = "stamp.png"
	AssetPattern   = "pattern.png"
)

var assetNames = []string{AssetLeftLogo, AssetRightLogo, AssetStamp, AssetPattern}

const (
	pageWidth  = 210.0
	marginX    = 20.0
	logoWidth  = 35.0
	qrSize     = 35.0
	qrPixels   = 256
	fontFamily = "certfont"
	title      = "Registration Certificate for the Fiscal Year"
)

// Options configures a Renderer. Without AssetsDir the certificate is drawn
// without logos, stamp or background pattern. FontFile names a UTF-8 TrueType
// font; without it text is limited to the cp1252 range of the core fonts.
type Options struct {
	AssetsDir string
	FontFile  string
}

// Renderer draws certificates. It is safe for concurrent use.
type Renderer struct {
	assets map[string][]byte
	font   []byte
	now    func() time.Time
}

// NewRenderer loads the image assets and font named by opts.
func NewRenderer(opts Options) (*Renderer, error) {
	r := &Renderer{
		assets: make(map[string][]byte),
		now:    time.Now,
	}

	if opts.AssetsDir != "" {
		for _, name := range assetNames {
			data, err := os.ReadFile(filepath.Join(opts.AssetsDir, name))
			if err != nil {
				return nil, fmt.Errorf("failed to read certificate asset: %w", err)
			}
			r.assets[name] = data
		}
	}

	if opts.FontFile != "" {
		font, err := os.ReadFile(opts.FontFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate font: %w", err)
		}
		r.font = font
	}

	return r, nil
}

// Render returns the certificate for req as a PDF document. The QR code
// and the link over it point at downloadURL.
func (r *Renderer) Render(req Request, downloadURL string) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	qr, err := qrcode.Encode(downloadURL, qrcode.Medium, qrPixels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("mail-relay-lite", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(marginX, 10, marginX)

	family, tr := "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	if len(r.font) > 0 {
		pdf.AddUTF8FontFromBytes(fontFamily, "", r.font)
		pdf.AddUTF8FontFromBytes(fontFamily, "B", r.font)
		family, tr = fontFamily, func(s string) string { return s }
	}

	pdf.AddPage()

	if r.hasAsset(AssetPattern) {
		pdf.SetAlpha(0.15, "Normal")
		r.image(pdf, AssetPattern, 0, 100, 105)
		pdf.SetAlpha(1, "Normal")
	}
	r.image(pdf, AssetLeftLogo, marginX, 10, logoWidth)
	r.image(pdf, AssetRightLogo, pageWidth-marginX-logoWidth, 10, logoWidth)

	pdf.SetXY(0, 50)
	pdf.SetFillColor(44, 62, 80)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(family, "B", 18)
	pdf.CellFormat(pageWidth, 14, tr(title), "", 1, "C", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(family, "", 13)
	pdf.SetXY(marginX, 67)
	pdf.CellFormat(0, 8, tr("Year: "+strconv.Itoa(r.now().Year())), "", 1, "L", false, 0, "")

	field := func(label string, value Value) {
		pdf.SetX(marginX)
		pdf.SetFont(family, "B", 12)
		pdf.CellFormat(55, 8, tr(label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont(family, "", 12)
		pdf.MultiCell(0, 8, tr(string(value)), "", "L", false)
	}

	pdf.Ln(2)
	field("Membership number", req.MembershipNumber)
	field("National number", req.NationalNumber)

	pdf.Ln(4)
	pdf.SetX(marginX)
	pdf.SetFont(family, "B", 12)
	pdf.MultiCell(0, 8, tr("The Amman Chamber of Commerce certifies that"), "", "L", false)
	pdf.SetFont(family, "", 12)
	pdf.SetX(marginX)
	pdf.MultiCell(0, 8, tr(fmt.Sprintf("%s, owned by %s,", req.CompanyName, req.OwnerName)), "", "L", false)
	pdf.SetX(marginX)
	pdf.MultiCell(0, 8, tr("is registered with the Chamber as follows:"), "", "L", false)

	pdf.Ln(2)
	field("Business address", req.Address)
	field("Branches", req.Branches)
	field("Capital", req.Capital)
	field("Category", req.Category)
	field("Trade sector", req.Sector)
	field("Business type", req.BusinessType)

	const footerY = 212.0
	pdf.RegisterImageOptionsReader("qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", marginX, footerY, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, downloadURL)

	pdf.SetXY(marginX+qrSize, footerY+12)
	pdf.SetFont(family, "B", 12)
	pdf.CellFormat(pageWidth-2*marginX-qrSize-logoWidth, 10, tr(fmt.Sprintf("Fees paid: %s JOD", req.FeesPaid)), "", 0, "C", false, 0, "")

	r.image(pdf, AssetStamp, pageWidth-marginX-logoWidth, footerY, logoWidth)
	pdf.SetXY(pageWidth-marginX-logoWidth, footerY+qrSize+2)
	pdf.SetFont(family, "", 11)
	pdf.CellFormat(logoWidth, 6, tr("Signature"), "", 0, "C", false, 0, "")

	third := (pageWidth - 2*marginX) / 3
	pdf.SetXY(marginX, 270)
	pdf.SetFont(family, "", 10)
	pdf.SetTextColor(127, 140, 141)
	pdf.CellFormat(third, 6, tr(fmt.Sprintf("Issued: %s", req.IssueDate)), "", 0, "L", false, 0, "")
	pdf.CellFormat(third, 6, tr(fmt.Sprintf("Valid until: %s", req.ValidUntil)), "", 0, "C", false, 0, "")
	pdf.CellFormat(third, 6, tr(fmt.Sprintf("Receipt no.: %s", req.ReceiptNumber)), "", 0, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) hasAsset(name string) bool {
	_, ok := r.assets[name]
	return ok
}

// image places a loaded asset at (x, y) scaled to width w; missing assets
// are skipped.
func (r *Renderer) image(pdf *fpdf.Fpdf, name string, x, y, w float64) {
	data, ok := r.assets[name]
	if !ok {
		return
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	pdf.ImageOptions(name, x, y, w, 0, false, opts, 0, "")
}
