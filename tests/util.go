package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/storage/database"
)

// PrepareDB opens a migrated in-memory SQLite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// CreatePupil stores a pupil of class with marks in subject order (MTC, ENG, SCIE, SST).
// A negative mark leaves the subject out.
func CreatePupil(
	t *testing.T,
	repo pupil.Repository,
	name, class string,
	marks []int,
	createdAt ...time.Time,
) pupil.Pupil {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p := pupil.Pupil{
		Name:      name,
		Class:     class,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	for i, m := range marks {
		if m >= 0 && i < len(pupil.Subjects) {
			p.Marks.Set(nil, pupil.Subjects[i], m, "")
		}
	}

	p, err := repo.CreatePupil(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePupil() failed: %v", err)
	}
	return p
}
