// Package grading maps subject marks to grades/points and aggregates to divisions.
package grading

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Grades
const (
	D1 = "D1"
	D2 = "D2"
	C3 = "C3"
	C4 = "C4"
	C5 = "C5"
	C6 = "C6"
	P7 = "P7"
	P8 = "P8"
	F9 = "F9"
)

// Divisions
const (
	Division1 = "Division 1"
	Division2 = "Division 2"
	Division3 = "Division 3"
	Division4 = "Division 4"
	Ungraded  = "Ungraded (U)"
)

var (
	// Grades lists all grades, best first.
	Grades = []string{D1, D2, C3, C4, C5, C6, P7, P8, F9}
	// Divisions lists all divisions, best first.
	Divisions = []string{Division1, Division2, Division3, Division4, Ungraded}

	divisionRanks = map[string]int{
		Division1: 1,
		Division2: 2,
		Division3: 3,
		Division4: 4,
		Ungraded:  5,
	}

	gradeRemarks = map[string]string{
		D1: "EXCELLENT",
		D2: "VERY GOOD",
		C3: "GOOD",
		C4: "SATISFACTORY",
		C5: "FAIR",
		C6: "PASS",
		P7: "WEAK PASS",
		P8: "POOR",
		F9: "FAIL",
	}

	// errors
	ErrInvalidScale = errors.New("invalid grading scale")
)

type (
	// GradeBand is an inclusive marks range.
	GradeBand struct {
		Min    int    `json:"min" yaml:"min"`
		Max    int    `json:"max" yaml:"max"`
		Grade  string `json:"grade" yaml:"grade"`
		Points int    `json:"points" yaml:"points"`
	}

	// DivisionBand is an inclusive aggregate range.
	DivisionBand struct {
		Min   int    `json:"min" yaml:"min"`
		Max   int    `json:"max" yaml:"max"`
		Label string `json:"label" yaml:"label"`
	}

	// Scale holds the grading and division bands.
	// A value that falls in no band gets the fallback grade/points or division.
	Scale struct {
		Grades           []GradeBand    `json:"grades" yaml:"grades"`
		FallbackGrade    string         `json:"fallback_grade" yaml:"fallback_grade"`
		FallbackPoints   int            `json:"fallback_points" yaml:"fallback_points"`
		Divisions        []DivisionBand `json:"divisions" yaml:"divisions"`
		FallbackDivision string         `json:"fallback_division" yaml:"fallback_division"`
	}
)

var defaultScale = Scale{
	Grades: []GradeBand{
		{Min: 95, Max: 100, Grade: D1, Points: 1},
		{Min: 80, Max: 94, Grade: D2, Points: 2},
		{Min: 70, Max: 79, Grade: C3, Points: 3},
		{Min: 65, Max: 69, Grade: C4, Points: 4},
		{Min: 60, Max: 64, Grade: C5, Points: 5},
		{Min: 55, Max: 59, Grade: C6, Points: 6},
		{Min: 50, Max: 54, Grade: P7, Points: 7},
		{Min: 40, Max: 49, Grade: P8, Points: 8},
	},
	FallbackGrade:  F9,
	FallbackPoints: 9,
	Divisions: []DivisionBand{
		{Min: 4, Max: 12, Label: Division1},
		{Min: 13, Max: 24, Label: Division2},
		{Min: 25, Max: 28, Label: Division3},
		{Min: 29, Max: 32, Label: Division4},
	},
	FallbackDivision: Ungraded,
}

// DefaultScale returns a copy of the standard primary school scale.
func DefaultScale() *Scale {
	s := defaultScale.clone()
	return &s
}

func (s Scale) clone() Scale {
	c := s
	c.Grades = append([]GradeBand(nil), s.Grades...)
	c.Divisions = append([]DivisionBand(nil), s.Divisions...)
	return c
}

// GradeFor returns the grade and points for marks. It is total: any int gets a grade.
func (s *Scale) GradeFor(marks int) (string, int) {
	for _, band := range s.Grades {
		if marks >= band.Min && marks <= band.Max {
			return band.Grade, band.Points
		}
	}
	return s.FallbackGrade, s.FallbackPoints
}

// DivisionFor returns the division label for an aggregate (sum of points).
// It makes no assumption about how many subjects the aggregate was summed over.
func (s *Scale) DivisionFor(aggregate int) string {
	for _, band := range s.Divisions {
		if aggregate >= band.Min && aggregate <= band.Max {
			return band.Label
		}
	}
	return s.FallbackDivision
}

// Validate checks that bands are well formed and do not overlap.
func (s *Scale) Validate() error {
	if len(s.Grades) == 0 {
		return errors.Wrap(ErrInvalidScale, "no grade bands")
	}
	if s.FallbackGrade == "" || s.FallbackPoints < 1 {
		return errors.Wrap(ErrInvalidScale, "fallback grade and points are required")
	}
	if s.FallbackDivision == "" {
		return errors.Wrap(ErrInvalidScale, "fallback division is required")
	}

	ranges := make([][2]int, 0, len(s.Grades))
	for _, band := range s.Grades {
		if band.Grade == "" || band.Points < 1 {
			return errors.Wrapf(ErrInvalidScale, "grade band %d-%d: grade and points are required", band.Min, band.Max)
		}
		ranges = append(ranges, [2]int{band.Min, band.Max})
	}
	if err := checkRanges("grade", ranges); err != nil {
		return err
	}

	ranges = ranges[:0]
	for _, band := range s.Divisions {
		if band.Label == "" {
			return errors.Wrapf(ErrInvalidScale, "division band %d-%d: label is required", band.Min, band.Max)
		}
		ranges = append(ranges, [2]int{band.Min, band.Max})
	}
	return checkRanges("division", ranges)
}

func checkRanges(kind string, ranges [][2]int) error {
	for _, r := range ranges {
		if r[0] > r[1] {
			return errors.Wrapf(ErrInvalidScale, "%s band %d-%d: min > max", kind, r[0], r[1])
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })
	for i := 1; i < len(ranges); i++ {
		if ranges[i][0] <= ranges[i-1][1] {
			return errors.Wrapf(ErrInvalidScale, "%s bands %d-%d and %d-%d overlap",
				kind, ranges[i-1][0], ranges[i-1][1], ranges[i][0], ranges[i][1])
		}
	}
	return nil
}

// LoadScale reads a YAML scale file. Sections missing from the file keep their default values.
func LoadScale(path string) (*Scale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading grading scale")
	}

	var fileScale Scale
	if err = yaml.Unmarshal(data, &fileScale); err != nil {
		return nil, errors.Wrap(err, "parsing grading scale")
	}

	scale := DefaultScale()
	if len(fileScale.Grades) > 0 {
		scale.Grades = fileScale.Grades
	}
	if fileScale.FallbackGrade != "" {
		scale.FallbackGrade = fileScale.FallbackGrade
	}
	if fileScale.FallbackPoints != 0 {
		scale.FallbackPoints = fileScale.FallbackPoints
	}
	if len(fileScale.Divisions) > 0 {
		scale.Divisions = fileScale.Divisions
	}
	if fileScale.FallbackDivision != "" {
		scale.FallbackDivision = fileScale.FallbackDivision
	}

	if err = scale.Validate(); err != nil {
		return nil, err
	}
	return scale, nil
}

// GradeFor grades marks on the default scale.
func GradeFor(marks int) (string, int) {
	return defaultScale.GradeFor(marks)
}

// DivisionFor classifies an aggregate on the default scale.
func DivisionFor(aggregate int) string {
	return defaultScale.DivisionFor(aggregate)
}

// DivisionRank orders divisions: 1 is best. Unknown labels rank after Ungraded.
func DivisionRank(division string) int {
	if rank, ok := divisionRanks[division]; ok {
		return rank
	}
	return len(divisionRanks) + 1
}

// Remark is the report card remark for a grade.
func Remark(grade string) string {
	if remark, ok := gradeRemarks[grade]; ok {
		return remark
	}
	return "-"
}
