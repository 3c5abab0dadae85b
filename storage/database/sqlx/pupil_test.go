package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/storage/database/sqlx"
	"github.com/trezcool/matokeo/tests"
)

func TestPupilRepository(t *testing.T) {
	testutil.TestPupilRepository(t, func(t *testing.T) pupil.Repository {
		return sqlxrepos.NewPupilRepository(testutil.PrepareDB(t))
	})
}

func TestPupilRepository_transaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewPupilRepository(db)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	p := pupil.Pupil{Name: "Amani", Class: pupil.ClassP6}
	p.Marks.Set(nil, pupil.ENG, 77, "")
	created, err := repo.CreatePupil(ctx, p, tx)
	require.NoError(t, err)

	got, err := repo.GetPupil(ctx, created.ID, tx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Marks.Len())
	require.NoError(t, tx.Rollback())

	all, err := repo.QueryPupils(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPupilRepository_unknownOrderingIgnored(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewPupilRepository(testutil.PrepareDB(t))
	a := testutil.CreatePupil(t, repo, "A", pupil.ClassP4, nil)

	got, err := repo.QueryPupils(ctx, nil, []core.DBOrdering{{Field: "name; DROP TABLE pupils"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestPupilRepository_rejectsOutOfRangeMarks(t *testing.T) {
	repo := sqlxrepos.NewPupilRepository(testutil.PrepareDB(t))

	p := pupil.Pupil{Name: "A", Class: pupil.ClassP4}
	p.Marks.Put(pupil.SubjectMark{Subject: pupil.MTC, Marks: 140, Grade: "F9", Points: 9})
	_, err := repo.CreatePupil(context.Background(), p)
	assert.Error(t, err)
}
