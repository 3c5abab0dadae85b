package pupil

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/grading"
)

// Subject is one of the fixed subjects. Subjects are ordered MTC, ENG, SCIE, SST.
type Subject int

// Subjects
const (
	MTC Subject = iota
	ENG
	SCIE
	SST

	numSubjects
)

// Classes
const (
	ClassP4 = "P.4"
	ClassP5 = "P.5"
	ClassP6 = "P.6"
	ClassP7 = "P.7"
)

var (
	Subjects = []Subject{MTC, ENG, SCIE, SST}
	Classes  = []string{ClassP4, ClassP5, ClassP6, ClassP7}

	subjectCodes = [numSubjects]string{"MTC", "ENG", "SCIE", "SST"}
	subjectNames = [numSubjects]string{"Mathematics", "English", "Science", "Social Studies"}

	// errors
	ErrUnknownSubject = errors.New("unknown subject")
)

func (s Subject) Valid() bool {
	return s >= MTC && s < numSubjects
}

// String returns the subject code, e.g. "MTC".
func (s Subject) String() string {
	if !s.Valid() {
		return ""
	}
	return subjectCodes[s]
}

// Name returns the display name, e.g. "Mathematics".
func (s Subject) Name() string {
	if !s.Valid() {
		return ""
	}
	return subjectNames[s]
}

func (s Subject) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrUnknownSubject
	}
	return []byte(subjectCodes[s]), nil
}

func (s *Subject) UnmarshalText(text []byte) error {
	subject, err := ParseSubject(string(text))
	if err != nil {
		return err
	}
	*s = subject
	return nil
}

// ParseSubject parses a subject code, case-insensitively.
func ParseSubject(code string) (Subject, error) {
	code = strings.ToUpper(core.CleanString(code))
	for i, c := range subjectCodes {
		if c == code {
			return Subject(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownSubject, "%q", code)
}

// ValidClass reports whether class is one of Classes.
func ValidClass(class string) bool {
	for _, c := range Classes {
		if c == class {
			return true
		}
	}
	return false
}

// ClampMarks brings entered marks into [0, 100].
func ClampMarks(marks int) int {
	if marks < 0 {
		return 0
	}
	if marks > 100 {
		return 100
	}
	return marks
}

type SubjectMark struct {
	Subject     Subject `json:"subject"`
	Marks       int     `json:"marks"`
	Grade       string  `json:"grade"`
	Points      int     `json:"points"`
	TeacherName string  `json:"teacher_name,omitempty"`
}

// MarkSheet holds at most one mark per subject, iterated in subject order.
// It is a value type: copying a MarkSheet copies its marks.
type MarkSheet struct {
	marks [numSubjects]SubjectMark
	set   [numSubjects]bool
}

// Set records marks for subject, grading them on scale (the default scale when nil).
// Any previous mark for the subject is replaced.
func (ms *MarkSheet) Set(scale *grading.Scale, subject Subject, marks int, teacherName string) {
	if !subject.Valid() {
		return
	}
	if scale == nil {
		scale = grading.DefaultScale()
	}
	grade, points := scale.GradeFor(marks)
	ms.Put(SubjectMark{
		Subject:     subject,
		Marks:       marks,
		Grade:       grade,
		Points:      points,
		TeacherName: teacherName,
	})
}

// Put stores a mark as is. Used when loading persisted marks.
func (ms *MarkSheet) Put(m SubjectMark) {
	if !m.Subject.Valid() {
		return
	}
	ms.marks[m.Subject] = m
	ms.set[m.Subject] = true
}

func (ms *MarkSheet) Delete(subject Subject) {
	if !subject.Valid() {
		return
	}
	ms.marks[subject] = SubjectMark{}
	ms.set[subject] = false
}

func (ms MarkSheet) Get(subject Subject) (SubjectMark, bool) {
	if !subject.Valid() || !ms.set[subject] {
		return SubjectMark{}, false
	}
	return ms.marks[subject], true
}

// Len returns the number of recorded subjects.
func (ms MarkSheet) Len() int {
	var n int
	for _, ok := range ms.set {
		if ok {
			n++
		}
	}
	return n
}

// All returns the recorded marks in subject order.
func (ms MarkSheet) All() []SubjectMark {
	all := make([]SubjectMark, 0, numSubjects)
	for i, ok := range ms.set {
		if ok {
			all = append(all, ms.marks[i])
		}
	}
	return all
}

func (ms MarkSheet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ms.All())
}

func (ms *MarkSheet) UnmarshalJSON(data []byte) error {
	var marks []SubjectMark
	if err := json.Unmarshal(data, &marks); err != nil {
		return err
	}
	*ms = MarkSheet{}
	for _, m := range marks {
		ms.Put(m)
	}
	return nil
}

// Results are computed together for a class by the Calculator.
type Results struct {
	TotalMarks     int    `json:"total_marks"`
	TotalAggregate int    `json:"total_aggregate"`
	Division       string `json:"division"`
	Position       int    `json:"position"`
}

type Pupil struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	Marks     MarkSheet `json:"marks"`
	Results   *Results  `json:"results,omitempty"` // nil until results are calculated
	CreatedAt time.Time `json:"created_at"`        // UTC
	UpdatedAt time.Time `json:"updated_at"`        // UTC
}

// Ranked reports whether the pupil carries calculated results.
func (p Pupil) Ranked() bool {
	return p.Results != nil
}

// FirstName is the first word of the pupil's name.
func (p Pupil) FirstName() string {
	if fields := strings.Fields(p.Name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// MarkEntry is a single subject mark as entered. Marks are clamped to [0, 100].
type MarkEntry struct {
	Subject     string `json:"subject" validate:"required,subject"`
	Marks       *int   `json:"marks" validate:"required"`
	TeacherName string `json:"teacher_name" validate:"max=100"`
}

func (me *MarkEntry) clean() {
	me.Subject = strings.ToUpper(core.CleanString(me.Subject))
	me.TeacherName = core.CleanString(me.TeacherName)
}

// NewPupil contains information needed to create a new Pupil.
type NewPupil struct {
	Name  string      `json:"name" validate:"required,notblank,max=100"`
	Class string      `json:"class" validate:"required,pupilclass"`
	Marks []MarkEntry `json:"marks" validate:"omitempty,max=4,uniquesubjects,dive"`
}

func (np *NewPupil) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Class = core.CleanString(np.Class)
	for i := range np.Marks {
		np.Marks[i].clean()
	}
	return validate.Struct(np)
}

// UpdatePupil defines what information may be provided to modify an existing Pupil.
type UpdatePupil struct {
	Name  string `json:"name" validate:"omitempty,notblank,max=100"`
	Class string `json:"class" validate:"omitempty,pupilclass"`
}

func (up *UpdatePupil) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	up.Class = core.CleanString(up.Class)
	return validate.Struct(up)
}

// EnterMarks holds marks to add or replace for a pupil.
type EnterMarks struct {
	Marks []MarkEntry `json:"marks" validate:"required,min=1,max=4,uniquesubjects,dive"`
}

func (em *EnterMarks) Validate(validate *validator.Validate) error {
	for i := range em.Marks {
		em.Marks[i].clean()
	}
	return validate.Struct(em)
}

type QueryFilter struct {
	Class  string `query:"class"`
	Search string `query:"search"`
}

func (f *QueryFilter) Clean() {
	f.Class = core.CleanString(f.Class)
	f.Search = core.CleanString(f.Search)
}

// SubjectAverage is the class mean for a subject.
type SubjectAverage struct {
	Subject Subject `json:"subject"`
	Name    string  `json:"name"`
	Average float64 `json:"average"`
}

// ClassSummary aggregates a class's results.
type ClassSummary struct {
	Class             string                    `json:"class"`
	TotalPupils       int                       `json:"total_pupils"`
	WithResults       int                       `json:"with_results"`
	ClassAverage      float64                   `json:"class_average"`
	SubjectAverages   []SubjectAverage          `json:"subject_averages"`
	GradeDistribution map[string]map[string]int `json:"grade_distribution"` // subject code -> grade -> count
	DivisionCounts    map[string]int            `json:"division_counts"`
	TopPerformers     []Pupil                   `json:"top_performers"`
}

// ClassOverview is a short per-class count used by listings.
type ClassOverview struct {
	Class          string         `json:"class"`
	TotalPupils    int            `json:"total_pupils"`
	WithResults    int            `json:"with_results"`
	NeedsCalculate bool           `json:"needs_calculation"`
	DivisionCounts map[string]int `json:"division_counts"`
}
