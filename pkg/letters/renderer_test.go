package letters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() LetterData {
	return LetterData{
		InstitutionName: "Skyline University",
		ApplicantName:   "Lina Karim",
		ProgramName:     "Software Engineering",
		School:          "Engineering",
		DegreeLevel:     "BACHELOR",
		AcademicYear:    "2026/2027",
		Intake:          "Fall",
		TuitionAmount:   12000,
		DiscountPercent: 10,
		AmountDue:       10800,
		PaymentDeadline: "30 September 2026",
	}
}

func TestPath(t *testing.T) {
	assert.Equal(t, "offer-letters/offer_app-1.pdf", Path(TypeOffer, "app-1"))
	assert.Equal(t, "admission-letters/admission_app-1.pdf", Path(TypeAdmission, "app-1"))
}

func TestRenderOfferLetter(t *testing.T) {
	pdf, err := NewRenderer().Render(TypeOffer, sampleData())
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRenderAdmissionLetter(t *testing.T) {
	data := sampleData()
	data.PaymentRef = "TRX-0091"
	data.StudentNo = "SK20260042"

	pdf, err := NewRenderer().Render(TypeAdmission, data)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRenderRequiresApplicantName(t *testing.T) {
	data := sampleData()
	data.ApplicantName = ""

	_, err := NewRenderer().Render(TypeOffer, data)
	require.Error(t, err)
}
