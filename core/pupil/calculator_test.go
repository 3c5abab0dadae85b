package pupil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matokeo/core/grading"
)

// newPupil builds a pupil with marks given in subject order; a negative value skips the subject.
func newPupil(id string, marks ...int) Pupil {
	p := Pupil{ID: id, Name: "Pupil " + id, Class: ClassP5}
	for i, m := range marks {
		if m < 0 {
			continue
		}
		p.Marks.Set(nil, Subjects[i], m, "")
	}
	return p
}

func withResults(id string, aggregate, totalMarks int) Pupil {
	return Pupil{ID: id, Results: &Results{TotalAggregate: aggregate, TotalMarks: totalMarks}}
}

func positions(pupils []Pupil) []int {
	pos := make([]int, 0, len(pupils))
	for _, p := range pupils {
		pos = append(pos, p.Results.Position)
	}
	return pos
}

func ids(pupils []Pupil) []string {
	res := make([]string, 0, len(pupils))
	for _, p := range pupils {
		res = append(res, p.ID)
	}
	return res
}

func TestCalculateResults_endToEnd(t *testing.T) {
	tests := []struct {
		name          string
		marks         []int
		wantGrade     string
		wantMarks     int
		wantAggregate int
		wantDivision  string
	}{
		{name: "all 100", marks: []int{100, 100, 100, 100}, wantGrade: grading.D1, wantMarks: 400, wantAggregate: 4, wantDivision: grading.Division1},
		{name: "all 30", marks: []int{30, 30, 30, 30}, wantGrade: grading.F9, wantMarks: 120, wantAggregate: 36, wantDivision: grading.Ungraded},
		{name: "all 72", marks: []int{72, 72, 72, 72}, wantGrade: grading.C3, wantMarks: 288, wantAggregate: 12, wantDivision: grading.Division1},
		{name: "all 50", marks: []int{50, 50, 50, 50}, wantGrade: grading.P7, wantMarks: 200, wantAggregate: 28, wantDivision: grading.Division3},
		{name: "all 45", marks: []int{45, 45, 45, 45}, wantGrade: grading.P8, wantMarks: 180, wantAggregate: 32, wantDivision: grading.Division4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateResults([]Pupil{newPupil("a", tt.marks...)})
			require.Len(t, got, 1)

			res := got[0].Results
			require.NotNil(t, res)
			assert.Equal(t, tt.wantMarks, res.TotalMarks)
			assert.Equal(t, tt.wantAggregate, res.TotalAggregate)
			assert.Equal(t, tt.wantDivision, res.Division)
			assert.Equal(t, 1, res.Position)
			for _, m := range got[0].Marks.All() {
				assert.Equal(t, tt.wantGrade, m.Grade)
			}
		})
	}
}

func TestRank(t *testing.T) {
	tests := []struct {
		name          string
		pupils        []Pupil
		wantOrder     []string
		wantPositions []int
	}{
		{
			name:          "tie then gap",
			pupils:        []Pupil{withResults("a", 10, 300), withResults("b", 10, 300), withResults("c", 20, 250)},
			wantOrder:     []string{"a", "b", "c"},
			wantPositions: []int{1, 1, 3},
		},
		{
			name:          "aggregate then total marks",
			pupils:        []Pupil{withResults("a", 12, 200), withResults("b", 8, 150), withResults("c", 8, 180)},
			wantOrder:     []string{"c", "b", "a"},
			wantPositions: []int{1, 2, 3},
		},
		{
			name: "four way tie",
			pupils: []Pupil{
				withResults("a", 9, 310), withResults("b", 9, 310), withResults("c", 9, 310),
				withResults("d", 9, 310), withResults("e", 11, 290),
			},
			wantOrder:     []string{"a", "b", "c", "d", "e"},
			wantPositions: []int{1, 1, 1, 1, 5},
		},
		{
			name: "tie in the middle",
			pupils: []Pupil{
				withResults("a", 20, 240), withResults("b", 4, 400), withResults("c", 20, 240),
				withResults("d", 30, 150),
			},
			wantOrder:     []string{"b", "a", "c", "d"},
			wantPositions: []int{1, 2, 2, 4},
		},
		{
			name:          "same aggregate different marks",
			pupils:        []Pupil{withResults("a", 10, 300), withResults("b", 10, 301)},
			wantOrder:     []string{"b", "a"},
			wantPositions: []int{1, 2},
		},
		{
			name:          "single",
			pupils:        []Pupil{withResults("a", 36, 120)},
			wantOrder:     []string{"a"},
			wantPositions: []int{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank(tt.pupils)
			assert.Equal(t, tt.wantOrder, ids(tt.pupils))
			assert.Equal(t, tt.wantPositions, positions(tt.pupils))
		})
	}
}

func TestCalculateResults_tieGap(t *testing.T) {
	p1 := newPupil("p1", 80, 80, 70, 70) // 2+2+3+3 = 10, 300
	p2 := newPupil("p2", 70, 70, 80, 80) // 10, 300
	p3 := newPupil("p3", 95, 40, 40, 75) // 1+8+8+3 = 20, 250

	got := CalculateResults([]Pupil{p3, p1, p2})
	require.Len(t, got, 3)

	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(got))
	assert.Equal(t, []int{1, 1, 3}, positions(got))
	assert.Equal(t, 20, got[2].Results.TotalAggregate)
	assert.Equal(t, 250, got[2].Results.TotalMarks)
}

func TestCalculateResults_sort(t *testing.T) {
	a := newPupil("a", 100, 94, 6) // 1+2+9 = 12, 200
	b := newPupil("b", 100, 50)    // 1+7 = 8, 150
	c := newPupil("c", 100, 54)    // 1+7 = 8, 154

	got := CalculateResults([]Pupil{a, b, c})
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))
	assert.Equal(t, []int{1, 2, 3}, positions(got))
	assert.Equal(t, 12, got[2].Results.TotalAggregate)
	assert.Equal(t, 200, got[2].Results.TotalMarks)
}

func TestCalculateResults_partialMarks(t *testing.T) {
	partial := newPupil("partial", 100, -1, 50, -1) // MTC and SCIE only
	none := newPupil("none")
	full := newPupil("full", 60, 60, 60, 60) // 20, 240

	got := CalculateResults([]Pupil{none, partial, full})
	require.Len(t, got, 3)

	byID := make(map[string]Results, len(got))
	for _, p := range got {
		require.NotNil(t, p.Results)
		byID[p.ID] = *p.Results
	}

	// no marks: zero aggregate sorts first but is Ungraded
	assert.Equal(t, Results{TotalMarks: 0, TotalAggregate: 0, Division: grading.Ungraded, Position: 1}, byID["none"])
	assert.Equal(t, Results{TotalMarks: 150, TotalAggregate: 8, Division: grading.Division1, Position: 2}, byID["partial"])
	assert.Equal(t, Results{TotalMarks: 240, TotalAggregate: 20, Division: grading.Division2, Position: 3}, byID["full"])
}

func TestCalculateResults_idempotent(t *testing.T) {
	input := []Pupil{
		newPupil("a", 88, 72, 64, 91),
		newPupil("b", 88, 72, 64, 91),
		newPupil("c", 33, 41, 58, 60),
		newPupil("d", 100, 100, -1, 12),
		newPupil("e", 70, 70, 70, 70),
	}

	first := CalculateResults(input)
	second := CalculateResults(input)
	again := CalculateResults(first)

	assert.Equal(t, first, second)
	assert.Equal(t, ids(first), ids(again))
	assert.Equal(t, positions(first), positions(again))
}

func TestCalculateResults_doesNotMutateInput(t *testing.T) {
	stale := Pupil{ID: "stale", Class: ClassP6}
	stale.Marks.Put(SubjectMark{Subject: MTC, Marks: 96, Grade: grading.F9, Points: 9})
	stale.Marks.Put(SubjectMark{Subject: ENG, Marks: 81}) // no grade or points
	oldResults := &Results{TotalMarks: 1, TotalAggregate: 1, Division: "?", Position: 7}
	other := newPupil("other", 50, 50)
	other.Results = oldResults

	input := []Pupil{other, stale}
	got := CalculateResults(input)

	// input untouched
	assert.Equal(t, "other", input[0].ID)
	assert.Same(t, oldResults, input[0].Results)
	assert.Equal(t, 7, oldResults.Position)
	assert.Nil(t, input[1].Results)
	m, _ := input[1].Marks.Get(MTC)
	assert.Equal(t, 9, m.Points)

	// output re-derived from marks
	require.Equal(t, "stale", got[0].ID)
	assert.Equal(t, 3, got[0].Results.TotalAggregate)
	assert.Equal(t, 177, got[0].Results.TotalMarks)
	m, _ = got[0].Marks.Get(MTC)
	assert.Equal(t, grading.D1, m.Grade)
	assert.Equal(t, 1, m.Points)
	m, _ = got[0].Marks.Get(ENG)
	assert.Equal(t, grading.D2, m.Grade)
	assert.Equal(t, 2, m.Points)
}

func TestCalculateResults_empty(t *testing.T) {
	got := CalculateResults(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCalculator_customScale(t *testing.T) {
	scale := &grading.Scale{
		Grades:           []grading.GradeBand{{Min: 50, Max: 100, Grade: "PASS", Points: 1}},
		FallbackGrade:    "FAIL",
		FallbackPoints:   2,
		Divisions:        []grading.DivisionBand{{Min: 1, Max: 4, Label: "Good"}},
		FallbackDivision: "Bad",
	}
	calc := NewCalculator(scale)

	got := calc.Calculate([]Pupil{newPupil("a", 50, 49), newPupil("b", 90, 90, 90, 90)})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 3, got[0].Results.TotalAggregate)
	assert.Equal(t, "Good", got[0].Results.Division)
	m, _ := got[0].Marks.Get(ENG)
	assert.Equal(t, "FAIL", m.Grade)
	assert.Equal(t, 4, got[1].Results.TotalAggregate)
	assert.Equal(t, "Good", got[1].Results.Division)
}

func TestSortByPosition(t *testing.T) {
	a := withResults("a", 10, 300)
	a.Results.Position = 2
	b := withResults("b", 4, 400)
	b.Results.Position = 1
	c := Pupil{ID: "c"}
	d := withResults("d", 10, 300)
	d.Results.Position = 2

	got := sortByPosition([]Pupil{c, a, b, d})
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids(got))
	assert.NotNil(t, sortByPosition(nil))
}
