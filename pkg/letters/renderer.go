package letters

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// LetterType distinguishes the official documents the institution issues.
type LetterType string

const (
	TypeOffer     LetterType = "offer"
	TypeAdmission LetterType = "admission"
)

// Path returns the deterministic storage path for a letter. Regenerating a
// letter for the same application overwrites the prior artifact.
func Path(t LetterType, applicationID string) string {
	return fmt.Sprintf("%s-letters/%s_%s.pdf", t, t, applicationID)
}

// LetterData is the data contract handed to the renderer.
type LetterData struct {
	InstitutionName string
	ApplicantName   string
	ProgramName     string
	School          string
	DegreeLevel     string
	AcademicYear    string
	Intake          string
	TuitionAmount   int64
	DiscountPercent int
	AmountDue       int64
	PaymentRef      string
	PaymentDeadline string
	StudentNo       string
}

// Renderer produces letter PDFs.
type Renderer struct{}

// NewRenderer constructs a letter renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render creates the PDF bytes for the given letter type and data contract.
func (r *Renderer) Render(t LetterType, data LetterData) ([]byte, error) {
	if data.ApplicantName == "" {
		return nil, fmt.Errorf("letter requires an applicant name")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, strings.ToUpper(data.InstitutionName), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 9, title(t), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	for _, line := range bodyLines(t, data) {
		pdf.MultiCell(0, 6, line, "", "L", false)
		pdf.Ln(2)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	for _, row := range figureRows(t, data) {
		pdf.CellFormat(70, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(100, 7, row[1], "1", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 10)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render %s letter: %w", t, err)
	}
	return buf.Bytes(), nil
}

func title(t LetterType) string {
	if t == TypeAdmission {
		return "LETTER OF ADMISSION"
	}
	return "OFFER OF ADMISSION"
}

func bodyLines(t LetterType, data LetterData) []string {
	lines := []string{
		fmt.Sprintf("Dear %s,", data.ApplicantName),
	}
	switch t {
	case TypeAdmission:
		lines = append(lines,
			fmt.Sprintf("We are pleased to confirm your admission to the %s programme (%s, %s) for the %s intake of the %s academic year.",
				data.ProgramName, data.DegreeLevel, data.School, data.Intake, data.AcademicYear),
			"Your tuition payment has been received and verified. Please retain this letter for visa and registration purposes.")
		if data.StudentNo != "" {
			lines = append(lines, fmt.Sprintf("Your student number is %s.", data.StudentNo))
		}
	default:
		lines = append(lines,
			fmt.Sprintf("We are pleased to offer you a place on the %s programme (%s, %s) for the %s intake of the %s academic year.",
				data.ProgramName, data.DegreeLevel, data.School, data.Intake, data.AcademicYear),
			fmt.Sprintf("To secure your place, the amount due must be settled by %s.", data.PaymentDeadline))
	}
	return lines
}

func figureRows(t LetterType, data LetterData) [][2]string {
	rows := [][2]string{
		{"Tuition", formatAmount(data.TuitionAmount)},
		{fmt.Sprintf("Early payment discount (%d%%)", data.DiscountPercent), formatAmount(data.TuitionAmount - data.AmountDue)},
		{"Amount due", formatAmount(data.AmountDue)},
	}
	if t == TypeAdmission && data.PaymentRef != "" {
		rows = append(rows, [2]string{"Payment reference", data.PaymentRef})
	}
	return rows
}

func formatAmount(v int64) string {
	return fmt.Sprintf("USD %d.00", v)
}
