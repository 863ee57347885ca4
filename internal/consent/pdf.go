package consent

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"strings"

	"github.com/cph-cachet/carp-portal/internal/models"

	"github.com/go-pdf/fpdf"
)

// Document is the signed consent document stored as JSON inside an informed consent.
type Document struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
	Steps    []Step    `json:"steps"`
}

type Section struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// Step is one page of the consent flow the participant went through.
type Step struct {
	Title           string    `json:"title"`
	Text            string    `json:"text"`
	ConsentDocument *Document `json:"consentDocument,omitempty"`
}

// ParseDocument decodes the consent document of c.
func ParseDocument(c *models.InformedConsent) (*Document, error) {
	if c == nil {
		return nil, ErrNoConsent
	}
	var doc Document
	if err := json.Unmarshal([]byte(c.Consent), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConsent, err)
	}
	return &doc, nil
}

// Filename is the name the consent export is downloaded as.
func Filename(participant models.ParticipantAccount) string {
	return "informed-consent-" + participant.ParticipantID + ".pdf"
}

// WritePDF renders the signed consent of a participant.
func WritePDF(w io.Writer, participantName string, c *models.InformedConsent) error {
	doc, err := ParseDocument(c)
	if err != nil {
		return err
	}

	title := doc.Title
	if title == "" {
		title = "Informed Consent"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("CARP Portal", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(title), "", "L", false)
	pdf.Ln(4)

	writeSections(pdf, tr, doc.Sections)
	for _, step := range doc.Steps {
		if step.Title != "" {
			heading(pdf, tr, step.Title)
		}
		if step.Text != "" {
			body(pdf, tr, step.Text)
		}
		if step.ConsentDocument != nil {
			writeSections(pdf, tr, step.ConsentDocument.Sections)
		}
	}

	pdf.Ln(6)
	heading(pdf, tr, "Signature")
	pdf.SetFont("Helvetica", "", 11)
	name := c.Name
	if name == "" {
		name = participantName
	}
	pdf.CellFormat(0, 6, tr("Signed by: "+name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Signed on: "+c.SignedTimestamp.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	if c.SignedLocation != nil && *c.SignedLocation != "" {
		pdf.CellFormat(0, 6, tr("Location: "+*c.SignedLocation), "", 1, "L", false, 0, "")
	}

	if img, ok := signature(c.SignatureImage); ok {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("signature", opts, bytes.NewReader(img))
		pdf.ImageOptions("signature", pdf.GetX(), pdf.GetY()+2, 60, 0, true, opts, 0, "")
	}

	return pdf.Output(w)
}

func writeSections(pdf *fpdf.Fpdf, tr func(string) string, sections []Section) {
	for _, s := range sections {
		if s.Title != "" {
			heading(pdf, tr, s.Title)
		}
		if s.Summary != "" {
			pdf.SetFont("Helvetica", "I", 11)
			pdf.MultiCell(0, 5.5, tr(s.Summary), "", "L", false)
			pdf.Ln(1)
		}
		if s.Content != "" {
			body(pdf, tr, s.Content)
		}
	}
}

func heading(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.MultiCell(0, 7, tr(text), "", "L", false)
	pdf.Ln(1)
}

func body(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5.5, tr(text), "", "L", false)
	pdf.Ln(3)
}

// signature decodes a base64 PNG, with or without a data URL prefix. An image
// that cannot be read is left out of the export.
func signature(encoded *string) ([]byte, bool) {
	if encoded == nil || *encoded == "" {
		return nil, false
	}
	s := *encoded
	if i := strings.Index(s, "base64,"); i >= 0 {
		s = s[i+len("base64,"):]
	}
	img, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	if _, err := png.DecodeConfig(bytes.NewReader(img)); err != nil {
		return nil, false
	}
	return img, true
}
