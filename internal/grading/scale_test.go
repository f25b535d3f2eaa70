package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya/sams-api/internal/models"
)

func TestScaleGradeBoundaries(t *testing.T) {
	scale := DefaultScale()

	cases := []struct {
		percentage float64
		grade      string
	}{
		{90, "A+"},
		{89.999, "A"},
		{80, "A"},
		{79.999, "B+"},
		{70, "B+"},
		{60, "B"},
		{50, "C+"},
		{40, "C"},
		{39.999, "D"},
		{30, "D"},
		{29.999, "F"},
		{0, "F"},
		{100, "A+"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, scale.Grade(tc.percentage), "percentage %v", tc.percentage)
	}
}

func TestScalePercentage(t *testing.T) {
	scale := DefaultScale()

	p, err := scale.Percentage(35, 100)
	require.NoError(t, err)
	assert.Equal(t, 35.0, p)

	p, err = scale.Percentage(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 33.33, p)

	_, err = scale.Percentage(10, 0)
	assert.ErrorIs(t, err, ErrZeroMaximum)

	_, err = scale.Percentage(10, -5)
	assert.ErrorIs(t, err, ErrZeroMaximum)
}

func TestScalePassingMarks(t *testing.T) {
	scale := DefaultScale()

	declared := 35.0
	assert.Equal(t, 35.0, scale.PassingMarks(&declared, 100))
	assert.Equal(t, 40.0, scale.PassingMarks(nil, 100))
	assert.True(t, scale.Passed(40, 40))
	assert.False(t, scale.Passed(39.999, 40))
}

func TestRound2TiesToEven(t *testing.T) {
	assert.Equal(t, 0.12, Round2(0.125))
	assert.Equal(t, 0.38, Round2(0.375))
	assert.Equal(t, 33.33, Round2(100.0/3))
}

func TestNewScaleFallbacks(t *testing.T) {
	scale := NewScale(nil, 0)
	assert.Equal(t, "A+", scale.Grade(95))
	assert.Equal(t, 40.0, scale.PassingMarks(nil, 100))
}

func TestResolveObtainedSumsDivisions(t *testing.T) {
	mark := &models.SubjectMark{
		Obtained:     0,
		Maximum:      100,
		UseDivisions: true,
		Divisions: []models.DivisionMark{
			{Name: "theory", Obtained: 3},
			{Name: "practical", Obtained: 4},
			{Name: "viva", Obtained: 2},
		},
	}
	assert.Equal(t, 9.0, ResolveObtained(mark))
	// idempotent: a second reduction yields the same value
	mark.Obtained = ResolveObtained(mark)
	assert.Equal(t, 9.0, ResolveObtained(mark))
}

func TestResolveObtainedPassThrough(t *testing.T) {
	flat := &models.SubjectMark{Obtained: 42, Maximum: 50, UseDivisions: false}
	assert.Equal(t, 42.0, ResolveObtained(flat))

	empty := &models.SubjectMark{Obtained: 42, Maximum: 50, UseDivisions: true}
	assert.Equal(t, 42.0, ResolveObtained(empty))
}
