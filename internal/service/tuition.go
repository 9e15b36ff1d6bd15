package service

import (
	"math"
	"strings"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

// tuitionTable is the fixed annual fee schedule in whole currency units,
// keyed by degree level and school. It is the single source of tuition
// figures for offers, letters and invoicing.
var tuitionTable = map[models.DegreeLevel]map[string]int64{
	models.DegreeBachelor: {
		"engineering": 12000,
		"business":    11000,
		"medicine":    18000,
		"arts":        9000,
	},
	models.DegreeMaster: {
		"engineering": 15000,
		"business":    16000,
		"medicine":    22000,
		"arts":        11000,
	},
	models.DegreeDoctorate: {
		"engineering": 17000,
		"business":    17000,
		"medicine":    26000,
		"arts":        13000,
	},
}

// TuitionFor returns the base tuition for a degree level and school.
func TuitionFor(level models.DegreeLevel, school string) (int64, error) {
	bySchool, ok := tuitionTable[level]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "unknown degree level")
	}
	fee, ok := bySchool[strings.ToLower(strings.TrimSpace(school))]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "no fee configured for school")
	}
	return fee, nil
}

// AmountDue applies the early-payment discount to the base tuition.
// amountDue = base - round(base * discountPercent / 100).
func AmountDue(base int64, discountPercent int) int64 {
	discount := int64(math.Round(float64(base) * float64(discountPercent) / 100))
	return base - discount
}
