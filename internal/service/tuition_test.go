package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
)

func TestTuitionFor(t *testing.T) {
	cases := []struct {
		level  models.DegreeLevel
		school string
		want   int64
	}{
		{models.DegreeBachelor, "engineering", 12000},
		{models.DegreeBachelor, "arts", 9000},
		{models.DegreeMaster, "business", 16000},
		{models.DegreeMaster, "medicine", 22000},
		{models.DegreeDoctorate, "medicine", 26000},
		{models.DegreeDoctorate, "engineering", 17000},
	}

	for _, tc := range cases {
		got, err := TuitionFor(tc.level, tc.school)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s/%s", tc.level, tc.school)
	}
}

func TestTuitionForNormalizesSchool(t *testing.T) {
	got, err := TuitionFor(models.DegreeBachelor, "  Engineering ")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), got)
}

func TestTuitionForUnknown(t *testing.T) {
	_, err := TuitionFor(models.DegreeBachelor, "law")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = TuitionFor(models.DegreeLevel("DIPLOMA"), "engineering")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAmountDue(t *testing.T) {
	assert.Equal(t, int64(9000), AmountDue(10000, 10))
	assert.Equal(t, int64(10000), AmountDue(10000, 0))
	// 999 * 33% = 329.67, rounds to 330.
	assert.Equal(t, int64(669), AmountDue(999, 33))
	assert.Equal(t, int64(0), AmountDue(12000, 100))
}
