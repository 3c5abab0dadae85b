package pupil

import (
	"sort"

	"github.com/trezcool/matokeo/core/grading"
)

// Calculator ranks the pupils of a class. It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	scale *grading.Scale
}

// NewCalculator returns a Calculator grading on scale, or on the default scale when nil.
func NewCalculator(scale *grading.Scale) *Calculator {
	if scale == nil {
		scale = grading.DefaultScale()
	}
	return &Calculator{scale: scale}
}

func (calc *Calculator) Scale() *grading.Scale {
	return calc.scale
}

// Calculate computes results for pupils of a single class and returns them in rank order.
// Grades and points are re-derived from marks. classPupils is left untouched.
//
// Pupils are sorted by aggregate ascending, then total marks descending; equal pupils keep
// their input order. A pupil equal on both keys to the one before shares its position,
// otherwise its position is its 1-based index (1, 1, 3).
func (calc *Calculator) Calculate(classPupils []Pupil) []Pupil {
	ranked := make([]Pupil, len(classPupils))
	for i, p := range classPupils {
		ranked[i] = calc.total(p)
	}

	rank(ranked)
	return ranked
}

// rank sorts pupils carrying results and assigns their positions.
func rank(pupils []Pupil) {
	sort.SliceStable(pupils, func(i, j int) bool {
		ri, rj := pupils[i].Results, pupils[j].Results
		if ri.TotalAggregate != rj.TotalAggregate {
			return ri.TotalAggregate < rj.TotalAggregate
		}
		return ri.TotalMarks > rj.TotalMarks
	})

	for i := range pupils {
		res := pupils[i].Results
		if i > 0 {
			prev := pupils[i-1].Results
			if res.TotalAggregate == prev.TotalAggregate && res.TotalMarks == prev.TotalMarks {
				res.Position = prev.Position
				continue
			}
		}
		res.Position = i + 1
	}
}

// total regrades p's marks and sets its totals and division on a fresh Results.
func (calc *Calculator) total(p Pupil) Pupil {
	var res Results
	for _, m := range p.Marks.All() {
		p.Marks.Set(calc.scale, m.Subject, m.Marks, m.TeacherName)
		graded, _ := p.Marks.Get(m.Subject)
		res.TotalMarks += graded.Marks
		res.TotalAggregate += graded.Points
	}
	res.Division = calc.scale.DivisionFor(res.TotalAggregate)
	p.Results = &res
	return p
}

// sortByPosition orders ranked pupils by position, unranked last. Ties keep their order.
func sortByPosition(pupils []Pupil) []Pupil {
	sorted := make([]Pupil, len(pupils))
	copy(sorted, pupils)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Results, sorted[j].Results
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		}
		return ri.Position < rj.Position
	})
	return sorted
}

// CalculateResults ranks classPupils on the default scale.
func CalculateResults(classPupils []Pupil) []Pupil {
	return NewCalculator(nil).Calculate(classPupils)
}
