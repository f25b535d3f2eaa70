package grading

import (
	"errors"
	"math"
)

// ErrZeroMaximum is returned when a percentage is requested against a
// non-positive maximum. The ratio is undefined; callers must reject the
// subject rather than report 0%.
var ErrZeroMaximum = errors.New("grading: maximum marks must be positive")

// Band maps the lower edge of a percentage range to a letter grade. The
// lower edge is inclusive.
type Band struct {
	Min   float64
	Grade string
}

// Scale evaluates percentages into letter grades and pass flags. It is
// constructed once from configuration; nothing here reads ambient state.
type Scale struct {
	bands        []Band
	passingRatio float64
}

// NewScale builds a scale from descending bands and a default passing
// ratio. Bands must already be ordered by Min descending; the last band
// reached acts as the floor grade.
func NewScale(bands []Band, passingRatio float64) *Scale {
	if len(bands) == 0 {
		bands = defaultBands()
	}
	if passingRatio <= 0 || passingRatio >= 1 {
		passingRatio = 0.4
	}
	return &Scale{bands: bands, passingRatio: passingRatio}
}

// DefaultScale returns the institutional eight-band scale.
func DefaultScale() *Scale {
	return NewScale(defaultBands(), 0.4)
}

func defaultBands() []Band {
	return []Band{
		{Min: 90, Grade: "A+"},
		{Min: 80, Grade: "A"},
		{Min: 70, Grade: "B+"},
		{Min: 60, Grade: "B"},
		{Min: 50, Grade: "C+"},
		{Min: 40, Grade: "C"},
		{Min: 30, Grade: "D"},
		{Min: 0, Grade: "F"},
	}
}

// Grade maps a percentage to its letter grade.
func (s *Scale) Grade(percentage float64) string {
	for _, band := range s.bands {
		if percentage >= band.Min {
			return band.Grade
		}
	}
	return s.bands[len(s.bands)-1].Grade
}

// Percentage computes 100*obtained/maximum rounded to two decimals.
func (s *Scale) Percentage(obtained, maximum float64) (float64, error) {
	if maximum <= 0 {
		return 0, ErrZeroMaximum
	}
	return Round2(100 * obtained / maximum), nil
}

// Passed reports whether obtained meets the passing marks.
func (s *Scale) Passed(obtained, passingMarks float64) bool {
	return obtained >= passingMarks
}

// PassingMarks returns the explicit passing marks when declared, otherwise
// the configured ratio of the maximum.
func (s *Scale) PassingMarks(declared *float64, maximum float64) float64 {
	if declared != nil {
		return *declared
	}
	return s.passingRatio * maximum
}

// Round2 rounds to two decimals, ties to even. All percentage figures
// in the system share this rule.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
