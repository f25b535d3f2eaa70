package grading

import "github.com/vidyalaya/sams-api/internal/models"

// ResolveObtained reduces a subject mark's division scores to its obtained
// value. When the subject uses divisions and at least one division mark is
// recorded, obtained is the sum of division obtained values; the subject's
// declared maximum is never derived from division maxima. Otherwise the
// mark's own obtained value passes through unchanged. The reduction is
// idempotent and side-effect free; it must run before grade derivation on
// every write.
func ResolveObtained(mark *models.SubjectMark) float64 {
	if !mark.UseDivisions || len(mark.Divisions) == 0 {
		return mark.Obtained
	}
	sum := 0.0
	for i := range mark.Divisions {
		sum += mark.Divisions[i].Obtained
	}
	return sum
}
