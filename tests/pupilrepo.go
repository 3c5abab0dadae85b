package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/grading"
	"github.com/trezcool/matokeo/core/pupil"
)

// TestPupilRepository runs the behaviour every pupil.Repository shares.
// newRepo must return an empty repository.
func TestPupilRepository(t *testing.T, newRepo func(t *testing.T) pupil.Repository) {
	ctx := context.Background()
	base := time.Date(2024, 2, 5, 8, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)

		p := pupil.Pupil{Name: "Amani Grace", Class: pupil.ClassP5, CreatedAt: base, UpdatedAt: base}
		p.Marks.Set(nil, pupil.MTC, 88, "Ms. Auma")
		p.Marks.Set(nil, pupil.SST, 41, "")

		created, err := repo.CreatePupil(ctx, p)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.Ranked())

		got, err := repo.GetPupil(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Amani Grace", got.Name)
		assert.Equal(t, pupil.ClassP5, got.Class)
		assert.WithinDuration(t, base, got.CreatedAt, time.Millisecond)
		assert.Nil(t, got.Results)
		assert.Equal(t, []pupil.SubjectMark{
			{Subject: pupil.MTC, Marks: 88, Grade: grading.D2, Points: 2, TeacherName: "Ms. Auma"},
			{Subject: pupil.SST, Marks: 41, Grade: grading.P8, Points: 8},
		}, got.Marks.All())

		_, err = repo.GetPupil(ctx, "missing")
		assert.Equal(t, pupil.ErrNotFound, errors.Cause(err))
	})

	t.Run("query", func(t *testing.T) {
		repo := newRepo(t)
		okot := CreatePupil(t, repo, "Okot Brian", pupil.ClassP4, nil, at(1))
		amani := CreatePupil(t, repo, "Amani Grace", pupil.ClassP5, nil, at(2))
		nakato := CreatePupil(t, repo, "Nakato Sarah", pupil.ClassP4, nil, at(3))

		tests := []struct {
			name     string
			filter   *pupil.QueryFilter
			ordering []core.DBOrdering
			want     []pupil.Pupil
		}{
			{name: "all", want: []pupil.Pupil{okot, amani, nakato}},
			{name: "by class", filter: &pupil.QueryFilter{Class: pupil.ClassP4}, want: []pupil.Pupil{okot, nakato}},
			{name: "search", filter: &pupil.QueryFilter{Search: "grace"}, want: []pupil.Pupil{amani}},
			{name: "search ignores case", filter: &pupil.QueryFilter{Search: "OK"}, want: []pupil.Pupil{okot}},
			{name: "class and search", filter: &pupil.QueryFilter{Class: pupil.ClassP5, Search: "sarah"}, want: []pupil.Pupil{}},
			{
				name:     "ordered by name",
				ordering: []core.DBOrdering{{Field: "name", Ascending: true}},
				want:     []pupil.Pupil{amani, nakato, okot},
			},
			{
				name:     "ordered by class then newest",
				ordering: []core.DBOrdering{{Field: "class", Ascending: false}, {Field: "created_at"}},
				want:     []pupil.Pupil{amani, nakato, okot},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryPupils(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				assert.Equal(t, pupilIDs(tt.want), pupilIDs(got))
			})
		}

		p4, err := repo.ListByClass(ctx, pupil.ClassP4)
		require.NoError(t, err)
		assert.Equal(t, []string{okot.ID, nakato.ID}, pupilIDs(p4))

		p7, err := repo.ListByClass(ctx, pupil.ClassP7)
		require.NoError(t, err)
		assert.NotNil(t, p7)
		assert.Empty(t, p7)
	})

	t.Run("update", func(t *testing.T) {
		repo := newRepo(t)
		p := CreatePupil(t, repo, "Okot", pupil.ClassP6, []int{70, 60, 50, 40}, base)
		ranked := pupil.CalculateResults([]pupil.Pupil{p})
		require.NoError(t, repo.SaveResults(ctx, ranked))

		p.Name = "Okot Brian"
		p.Class = pupil.ClassP7
		p.Results = nil
		p.Marks.Delete(pupil.SCIE)
		p.Marks.Set(nil, pupil.ENG, 95, "Mr. Okello")
		p.UpdatedAt = at(5)

		updated, err := repo.UpdatePupil(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "Okot Brian", updated.Name)
		assert.Equal(t, pupil.ClassP7, updated.Class)
		assert.Nil(t, updated.Results)
		assert.Equal(t, 3, updated.Marks.Len())
		eng, _ := updated.Marks.Get(pupil.ENG)
		assert.Equal(t, pupil.SubjectMark{Subject: pupil.ENG, Marks: 95, Grade: grading.D1, Points: 1, TeacherName: "Mr. Okello"}, eng)

		got, err := repo.GetPupil(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.Marks.All(), got.Marks.All())
		assert.Nil(t, got.Results)
		assert.WithinDuration(t, at(5), got.UpdatedAt, time.Millisecond)

		_, err = repo.UpdatePupil(ctx, pupil.Pupil{ID: "missing", Name: "x", Class: pupil.ClassP4})
		assert.Equal(t, pupil.ErrNotFound, errors.Cause(err))
	})

	t.Run("save results", func(t *testing.T) {
		repo := newRepo(t)
		a := CreatePupil(t, repo, "A", pupil.ClassP4, []int{80, 80, 80, 80}, at(1))
		b := CreatePupil(t, repo, "B", pupil.ClassP4, []int{80, 80, 80, 80}, at(2))
		c := CreatePupil(t, repo, "C", pupil.ClassP4, []int{30, -1, -1, -1}, at(3))

		class, err := repo.ListByClass(ctx, pupil.ClassP4)
		require.NoError(t, err)
		require.NoError(t, repo.SaveResults(ctx, pupil.CalculateResults(class)))

		tests := []struct {
			id   string
			want pupil.Results
		}{
			{id: a.ID, want: pupil.Results{TotalMarks: 320, TotalAggregate: 8, Division: grading.Division1, Position: 1}},
			{id: b.ID, want: pupil.Results{TotalMarks: 320, TotalAggregate: 8, Division: grading.Division1, Position: 1}},
			{id: c.ID, want: pupil.Results{TotalMarks: 30, TotalAggregate: 9, Division: grading.Division1, Position: 3}},
		}
		for _, tt := range tests {
			got, err := repo.GetPupil(ctx, tt.id)
			require.NoError(t, err)
			require.NotNil(t, got.Results, tt.id)
			assert.Equal(t, tt.want, *got.Results)
		}

		assert.NoError(t, repo.SaveResults(ctx, nil))
		assert.Error(t, repo.SaveResults(ctx, []pupil.Pupil{a}))
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		a := CreatePupil(t, repo, "A", pupil.ClassP4, []int{50, 50, 50, 50}, at(1))
		b := CreatePupil(t, repo, "B", pupil.ClassP4, nil, at(2))
		c := CreatePupil(t, repo, "C", pupil.ClassP5, nil, at(3))

		n, err := repo.DeletePupilsByID(ctx, []string{a.ID, c.ID, "missing"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = repo.GetPupil(ctx, a.ID)
		assert.Equal(t, pupil.ErrNotFound, errors.Cause(err))

		all, err := repo.QueryPupils(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID}, pupilIDs(all))

		n, err = repo.DeletePupilsByID(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func pupilIDs(pupils []pupil.Pupil) []string {
	ids := make([]string, 0, len(pupils))
	for _, p := range pupils {
		ids = append(ids, p.ID)
	}
	return ids
}
