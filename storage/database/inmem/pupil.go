package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/pupil"
)

type pupilRepository struct {
	db *pupilTable
}

var _ pupil.Repository = (*pupilRepository)(nil) // interface compliance check

// NewPupilRepository returns a repository without transactions: the executors it is given are ignored.
func NewPupilRepository(db *DB) *pupilRepository {
	return &pupilRepository{db: db.pupil}
}

// clone copies p so callers never share Results with the table.
func clone(p pupil.Pupil) pupil.Pupil {
	if p.Results != nil {
		res := *p.Results
		p.Results = &res
	}
	return p
}

func (repo *pupilRepository) records() []*pupilRecord {
	recs := make([]*pupilRecord, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	return recs
}

func (repo *pupilRepository) CreatePupil(_ context.Context, p pupil.Pupil, _ ...core.DBExecutor) (pupil.Pupil, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	repo.db.seq++
	repo.db.table[p.ID] = &pupilRecord{Pupil: clone(p), seq: repo.db.seq}
	return clone(p), nil
}

func (repo *pupilRepository) GetPupil(_ context.Context, id string, _ ...core.DBExecutor) (pupil.Pupil, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return clone(rec.Pupil), nil
	}
	return pupil.Pupil{}, pupil.ErrNotFound
}

func (repo *pupilRepository) QueryPupils(
	_ context.Context,
	filter *pupil.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]pupil.Pupil, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := repo.records()
	matched := recs[:0]
	for _, rec := range recs {
		if filter != nil {
			if filter.Class != "" && rec.Class != filter.Class {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		matched = append(matched, rec)
	}

	// records are in insertion order, so a stable sort falls back to creation order
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].Pupil, matched[j].Pupil
		for _, ord := range ordering {
			if resultFields[ord.Field] && (a.Results == nil) != (b.Results == nil) {
				return a.Results != nil // unranked last
			}
			if c := compare(a, b, ord.Field); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return false
	})

	pupils := make([]pupil.Pupil, 0, len(matched))
	for _, rec := range matched {
		pupils = append(pupils, clone(rec.Pupil))
	}
	return pupils, nil
}

var resultFields = map[string]bool{"total_marks": true, "total_aggregate": true, "position": true}

func compare(a, b pupil.Pupil, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "class":
		return strings.Compare(a.Class, b.Class)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	if !resultFields[field] || a.Results == nil || b.Results == nil {
		return 0
	}
	return resultValue(*a.Results, field) - resultValue(*b.Results, field)
}

func resultValue(res pupil.Results, field string) int {
	switch field {
	case "total_marks":
		return res.TotalMarks
	case "total_aggregate":
		return res.TotalAggregate
	}
	return res.Position
}

func (repo *pupilRepository) ListByClass(ctx context.Context, class string, exec ...core.DBExecutor) ([]pupil.Pupil, error) {
	return repo.QueryPupils(ctx, &pupil.QueryFilter{Class: class}, nil, exec...)
}

func (repo *pupilRepository) UpdatePupil(_ context.Context, p pupil.Pupil, _ ...core.DBExecutor) (pupil.Pupil, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.table[p.ID]
	if !ok {
		return pupil.Pupil{}, pupil.ErrNotFound
	}
	// creation time is immutable
	p.CreatedAt = rec.CreatedAt
	rec.Pupil = clone(p)
	return clone(p), nil
}

func (repo *pupilRepository) SaveResults(_ context.Context, pupils []pupil.Pupil, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, p := range pupils {
		rec, ok := repo.db.table[p.ID]
		if !ok {
			continue
		}
		if p.Results == nil {
			return errors.Errorf("pupil %s has no results", p.ID)
		}
		res := *p.Results
		rec.Results = &res
		// grades were re-derived by the calculator
		for _, m := range p.Marks.All() {
			if _, ok := rec.Marks.Get(m.Subject); ok {
				rec.Marks.Put(m)
			}
		}
	}
	return nil
}

func (repo *pupilRepository) DeletePupilsByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			deleted++
		}
	}
	return deleted, nil
}
