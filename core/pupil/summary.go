package pupil

import (
	"strings"

	"github.com/trezcool/matokeo/core/grading"
)

var divisionComments = map[string]string{
	grading.Division1: "EXCELLENT PERFORMANCE %s! KEEP UP THE OUTSTANDING WORK. " +
		"YOU HAVE DEMONSTRATED EXCEPTIONAL UNDERSTANDING AND COMMITMENT TO YOUR STUDIES.",
	grading.Division2: "VERY GOOD PERFORMANCE %s. WITH CONTINUED EFFORT AND FOCUS, " +
		"YOU CAN ACHIEVE EVEN BETTER RESULTS. KEEP WORKING HARD.",
	grading.Division3: "GOOD PERFORMANCE OVERALL %s. YOU NEED TO WORK HARDER IN YOUR WEAKER SUBJECTS " +
		"TO IMPROVE YOUR OVERALL STANDING.",
	grading.Division4: "FAIR PERFORMANCE %s. YOU NEED TO IMPROVE YOUR STUDY HABITS " +
		"AND SEEK HELP FROM TEACHERS IN DIFFICULT SUBJECTS.",
	grading.Ungraded: "%s, SERIOUS ATTENTION IS NEEDED. PLEASE MEET WITH YOUR TEACHERS " +
		"FOR ADDITIONAL GUIDANCE AND SUPPORT TO IMPROVE YOUR ACADEMIC PERFORMANCE.",
}

const pendingComment = "%s, RESULTS ARE BEING PROCESSED. PLEASE CHECK BACK LATER FOR COMPLETE ASSESSMENT."

// Remark returns the report card comment for a pupil's division, addressed by first name.
func Remark(division, name string) string {
	first := strings.ToUpper(Pupil{Name: name}.FirstName())
	tmpl, ok := divisionComments[division]
	if !ok {
		tmpl = pendingComment
	}
	return strings.Replace(tmpl, "%s", first, 1)
}

// Summarize computes class statistics over pupils of a single class.
// Subject averages divide by the number of pupils (a missing mark counts as 0),
// the class average is taken over ranked pupils only.
func Summarize(class string, pupils []Pupil) ClassSummary {
	sum := ClassSummary{
		Class:             class,
		TotalPupils:       len(pupils),
		SubjectAverages:   make([]SubjectAverage, 0, len(Subjects)),
		GradeDistribution: make(map[string]map[string]int, len(Subjects)),
		DivisionCounts:    make(map[string]int, len(grading.Divisions)),
		TopPerformers:     []Pupil{},
	}
	for _, div := range grading.Divisions {
		sum.DivisionCounts[div] = 0
	}

	var subjectTotals [numSubjects]int
	var rankedTotal int
	for _, p := range pupils {
		for _, m := range p.Marks.All() {
			subjectTotals[m.Subject] += m.Marks

			dist, ok := sum.GradeDistribution[m.Subject.String()]
			if !ok {
				dist = make(map[string]int)
				sum.GradeDistribution[m.Subject.String()] = dist
			}
			dist[m.Grade]++
		}

		if !p.Ranked() {
			continue
		}
		sum.WithResults++
		rankedTotal += p.Results.TotalMarks
		sum.DivisionCounts[p.Results.Division]++
		if p.Results.Position == 1 {
			sum.TopPerformers = append(sum.TopPerformers, p)
		}
	}

	for _, s := range Subjects {
		avg := SubjectAverage{Subject: s, Name: s.Name()}
		if sum.TotalPupils > 0 {
			avg.Average = float64(subjectTotals[s]) / float64(sum.TotalPupils)
		}
		sum.SubjectAverages = append(sum.SubjectAverages, avg)
	}
	if sum.WithResults > 0 {
		sum.ClassAverage = float64(rankedTotal) / float64(sum.WithResults)
	}
	return sum
}
