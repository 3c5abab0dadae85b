package tests

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/matokeo/core/grading"
	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/tests"
)

func positions(pupils []pupil.Pupil) []int {
	pp := make([]int, 0, len(pupils))
	for _, p := range pupils {
		if p.Results == nil {
			pp = append(pp, 0)
			continue
		}
		pp = append(pp, p.Results.Position)
	}
	return pp
}

func Test_classApi_results(t *testing.T) {
	app := setup(t)
	a := testutil.CreatePupil(t, app.repo, "A", pupil.ClassP5, []int{80, 80, 70, 70})
	b := testutil.CreatePupil(t, app.repo, "B", pupil.ClassP5, []int{70, 70, 80, 80})
	c := testutil.CreatePupil(t, app.repo, "C", pupil.ClassP5, []int{95, 95, 95, 95})
	d := testutil.CreatePupil(t, app.repo, "D", pupil.ClassP5, []int{10, 10, 10, 10})

	for _, path := range []string{"/v1/classes/P.5/results", "/v1/classes/p5/results"} {
		rec := app.do(http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var ranked []pupil.Pupil
		unmarshal(t, rec, &ranked)
		require.Len(t, ranked, 4)
		assert.Equal(t, []string{c.ID, a.ID, b.ID, d.ID}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID, ranked[3].ID})
		assert.Equal(t, []int{1, 2, 2, 4}, positions(ranked))
		assert.Equal(t, grading.Ungraded, ranked[3].Results.Division)
	}

	rec := app.do(http.MethodPost, "/v1/classes/P.5/results")
	require.Equal(t, http.StatusOK, rec.Code)
	var ranked []pupil.Pupil
	unmarshal(t, rec, &ranked)
	assert.Equal(t, []int{1, 2, 2, 4}, positions(ranked))

	tests := []httpTest{
		{name: "unknown class", method: http.MethodGet, path: "/v1/classes/P.9/results", wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound)},
		{name: "unknown class (calculate)", method: http.MethodPost, path: "/v1/classes/S1/results", wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound)},
		{name: "empty class", method: http.MethodGet, path: "/v1/classes/P.7/results", wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classApi_overviewAndCalculate(t *testing.T) {
	app := setup(t)
	testutil.CreatePupil(t, app.repo, "A", pupil.ClassP4, []int{50, 50, 50, 50})
	testutil.CreatePupil(t, app.repo, "B", pupil.ClassP6, []int{60})
	testutil.CreatePupil(t, app.repo, "C", pupil.ClassP7, nil)

	rec := app.do(http.MethodGet, "/v1/classes")
	require.Equal(t, http.StatusOK, rec.Code)
	var overview []pupil.ClassOverview
	unmarshal(t, rec, &overview)
	require.Len(t, overview, 4)
	assert.True(t, overview[0].NeedsCalculate)
	assert.False(t, overview[1].NeedsCalculate)
	assert.Equal(t, 1, overview[2].TotalPupils)

	rec = app.do(http.MethodPost, "/v1/classes/calculate")
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"classes": ["P.4", "P.6"]}`),
	}, rec)

	rec = app.do(http.MethodPost, "/v1/classes/calculate")
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"classes": []}`)}, rec)

	// metrics were recorded for both calculations
	rec = app.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `matokeo_results_calculations_total{class="P.4",result="success"} 1`)
	assert.Contains(t, rec.Body.String(), `matokeo_ranked_pupils{class="P.6"} 1`)
}

func Test_classApi_summary(t *testing.T) {
	app := setup(t)
	testutil.CreatePupil(t, app.repo, "Amani", pupil.ClassP6, []int{100, 100, 100, 100})
	testutil.CreatePupil(t, app.repo, "Okot", pupil.ClassP6, []int{40, 40, 40, 40})

	rec := app.do(http.MethodGet, "/v1/classes/P.6/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum pupil.ClassSummary
	unmarshal(t, rec, &sum)
	assert.Equal(t, pupil.ClassP6, sum.Class)
	assert.Equal(t, 2, sum.TotalPupils)
	assert.Equal(t, 2, sum.WithResults)
	assert.InDelta(t, 280.0, sum.ClassAverage, 1e-9)
	assert.Equal(t, 70.0, sum.SubjectAverages[0].Average)
	assert.Equal(t, map[string]int{grading.D1: 1, grading.P8: 1}, sum.GradeDistribution["MTC"])
	require.Len(t, sum.TopPerformers, 1)
	assert.Equal(t, "Amani", sum.TopPerformers[0].Name)

	rec = app.do(http.MethodGet, "/v1/classes/X/summary")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_classApi_exports(t *testing.T) {
	app := setup(t)
	testutil.CreatePupil(t, app.repo, "Amani", pupil.ClassP4, []int{88, 77, 66, 55})
	testutil.CreatePupil(t, app.repo, "Okot", pupil.ClassP4, []int{44, 55, 66, 77})

	rec := app.do(http.MethodGet, "/v1/classes/P.4/report-cards.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = app.do(http.MethodGet, "/v1/classes/P.5/report-cards.pdf")
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound)}, rec)

	rec = app.do(http.MethodGet, "/v1/classes/P.4/report.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `results-P.4.xlsx`)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Amani", rows[1][1])
}
