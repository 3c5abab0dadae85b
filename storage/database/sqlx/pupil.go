package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/pupil"
)

const (
	pupilColumns = "id, name, class, total_marks, total_aggregate, division, position, created_at, updated_at"
	markColumns  = "id, pupil_id, subject, marks, grade, points, teacher_name, created_at"

	defaultOrdering = "created_at ASC, id ASC"
)

type (
	pupilRow struct {
		ID             string      `db:"id"`
		Name           string      `db:"name"`
		Class          string      `db:"class"`
		TotalMarks     null.Int    `db:"total_marks"`
		TotalAggregate null.Int    `db:"total_aggregate"`
		Division       null.String `db:"division"`
		Position       null.Int    `db:"position"`
		CreatedAt      time.Time   `db:"created_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}

	markRow struct {
		ID          string      `db:"id"`
		PupilID     string      `db:"pupil_id"`
		Subject     string      `db:"subject"`
		Marks       int         `db:"marks"`
		Grade       string      `db:"grade"`
		Points      int         `db:"points"`
		TeacherName null.String `db:"teacher_name"`
		CreatedAt   time.Time   `db:"created_at"`
	}
)

type pupilRepository struct {
	exec core.DBExecutor
}

var _ pupil.Repository = (*pupilRepository)(nil) // interface compliance check

func NewPupilRepository(exec core.DBExecutor) *pupilRepository {
	return &pupilRepository{exec: exec}
}

func (repo pupilRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// inTx runs fn in a transaction unless the executor already is one.
func (repo pupilRepository) inTx(ctx context.Context, svcExec []core.DBExecutor, fn func(exec core.DBExecutor) error) error {
	exec := repo.getExec(svcExec)
	db, ok := exec.(core.DB)
	if !ok {
		return fn(exec)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo pupilRepository) row(p pupil.Pupil) pupilRow {
	r := pupilRow{
		ID:        p.ID,
		Name:      p.Name,
		Class:     p.Class,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	if res := p.Results; res != nil {
		r.TotalMarks = null.IntFrom(res.TotalMarks)
		r.TotalAggregate = null.IntFrom(res.TotalAggregate)
		r.Division = null.StringFrom(res.Division)
		r.Position = null.IntFrom(res.Position)
	}
	return r
}

func (repo pupilRepository) unrow(r pupilRow, marks []markRow) (pupil.Pupil, error) {
	p := pupil.Pupil{
		ID:        r.ID,
		Name:      r.Name,
		Class:     r.Class,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.TotalMarks.Valid && r.TotalAggregate.Valid && r.Division.Valid && r.Position.Valid {
		p.Results = &pupil.Results{
			TotalMarks:     r.TotalMarks.Int,
			TotalAggregate: r.TotalAggregate.Int,
			Division:       r.Division.String,
			Position:       r.Position.Int,
		}
	}
	for _, m := range marks {
		subject, err := pupil.ParseSubject(m.Subject)
		if err != nil {
			return pupil.Pupil{}, errors.Wrapf(err, "loading marks of pupil %s", r.ID)
		}
		p.Marks.Put(pupil.SubjectMark{
			Subject:     subject,
			Marks:       m.Marks,
			Grade:       m.Grade,
			Points:      m.Points,
			TeacherName: m.TeacherName.String,
		})
	}
	return p, nil
}

// load attaches marks to pupil rows, keeping the row order.
func (repo pupilRepository) load(ctx context.Context, exec core.DBExecutor, rows []pupilRow) ([]pupil.Pupil, error) {
	pupils := make([]pupil.Pupil, 0, len(rows))
	if len(rows) == 0 {
		return pupils, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	q, args, err := sqlx.In("SELECT "+markColumns+" FROM marks WHERE pupil_id IN (?)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building marks query")
	}
	var marks []markRow
	if err = exec.SelectContext(ctx, &marks, exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting marks")
	}

	byPupil := make(map[string][]markRow, len(rows))
	for _, m := range marks {
		byPupil[m.PupilID] = append(byPupil[m.PupilID], m)
	}
	for _, r := range rows {
		p, err := repo.unrow(r, byPupil[r.ID])
		if err != nil {
			return nil, err
		}
		pupils = append(pupils, p)
	}
	return pupils, nil
}

// trapNoRowsErr maps sql "no rows" err to pupil.ErrNotFound
func (repo pupilRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return pupil.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo pupilRepository) saveMarks(ctx context.Context, exec core.DBExecutor, p pupil.Pupil) error {
	all := p.Marks.All()

	// drop subjects no longer on the sheet
	if len(all) == 0 {
		if _, err := exec.ExecContext(ctx, exec.Rebind("DELETE FROM marks WHERE pupil_id = ?"), p.ID); err != nil {
			return errors.Wrap(err, "deleting marks")
		}
		return nil
	}
	kept := make([]string, 0, len(all))
	for _, m := range all {
		kept = append(kept, m.Subject.String())
	}
	q, args, err := sqlx.In("DELETE FROM marks WHERE pupil_id = ? AND subject NOT IN (?)", p.ID, kept)
	if err != nil {
		return errors.Wrap(err, "building marks query")
	}
	if _, err = exec.ExecContext(ctx, exec.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting marks")
	}

	upsert := exec.Rebind(`INSERT INTO marks (` + markColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pupil_id, subject) DO UPDATE SET
			marks = excluded.marks, grade = excluded.grade, points = excluded.points, teacher_name = excluded.teacher_name`)
	now := time.Now().UTC()
	for _, m := range all {
		_, err = exec.ExecContext(ctx, upsert,
			uuid.New().String(), p.ID, m.Subject.String(), m.Marks, m.Grade, m.Points,
			null.NewString(m.TeacherName, m.TeacherName != ""), now)
		if err != nil {
			return errors.Wrapf(err, "saving %s mark", m.Subject)
		}
	}
	return nil
}

func (repo pupilRepository) CreatePupil(ctx context.Context, p pupil.Pupil, exec ...core.DBExecutor) (pupil.Pupil, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	r := repo.row(p)

	err := repo.inTx(ctx, exec, func(ex core.DBExecutor) error {
		q := ex.Rebind("INSERT INTO pupils (" + pupilColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
		_, err := ex.ExecContext(ctx, q,
			r.ID, r.Name, r.Class, r.TotalMarks, r.TotalAggregate, r.Division, r.Position, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "inserting pupil")
		}
		if err = repo.saveMarks(ctx, ex, p); err != nil {
			return err
		}
		p, err = repo.GetPupil(ctx, p.ID, ex)
		return err
	})
	if err != nil {
		return pupil.Pupil{}, err
	}
	return p, nil
}

func (repo pupilRepository) GetPupil(ctx context.Context, id string, exec ...core.DBExecutor) (pupil.Pupil, error) {
	ex := repo.getExec(exec)

	var r pupilRow
	if err := ex.GetContext(ctx, &r, ex.Rebind("SELECT "+pupilColumns+" FROM pupils WHERE id = ?"), id); err != nil {
		return pupil.Pupil{}, repo.trapNoRowsErr(err, "selecting pupil")
	}
	pupils, err := repo.load(ctx, ex, []pupilRow{r})
	if err != nil {
		return pupil.Pupil{}, err
	}
	return pupils[0], nil
}

func (repo pupilRepository) QueryPupils(
	ctx context.Context,
	filter *pupil.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]pupil.Pupil, error) {
	ex := repo.getExec(exec)

	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Class != "" {
			where = append(where, "class = ?")
			args = append(args, filter.Class)
		}
		// pupils with Name matching the search keyword
		if filter.Search != "" {
			where = append(where, "LOWER(name) LIKE ?")
			args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		}
	}

	q := "SELECT " + pupilColumns + " FROM pupils"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering)

	var rows []pupilRow
	if err := ex.SelectContext(ctx, &rows, ex.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting pupils")
	}
	return repo.load(ctx, ex, rows)
}

// orderBy renders known ordering fields, then falls back to creation order.
func orderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if pupil.OrderingFields[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	clauses = append(clauses, defaultOrdering)
	return strings.Join(clauses, ", ")
}

func (repo pupilRepository) ListByClass(ctx context.Context, class string, exec ...core.DBExecutor) ([]pupil.Pupil, error) {
	return repo.QueryPupils(ctx, &pupil.QueryFilter{Class: class}, nil, exec...)
}

func (repo pupilRepository) UpdatePupil(ctx context.Context, p pupil.Pupil, exec ...core.DBExecutor) (pupil.Pupil, error) {
	r := repo.row(p)

	err := repo.inTx(ctx, exec, func(ex core.DBExecutor) error {
		q := ex.Rebind(`UPDATE pupils SET name = ?, class = ?, total_marks = ?, total_aggregate = ?, division = ?,
			position = ?, updated_at = ? WHERE id = ?`)
		res, err := ex.ExecContext(ctx, q,
			r.Name, r.Class, r.TotalMarks, r.TotalAggregate, r.Division, r.Position, r.UpdatedAt, r.ID)
		if err != nil {
			return errors.Wrap(err, "updating pupil")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return pupil.ErrNotFound
		}
		if err = repo.saveMarks(ctx, ex, p); err != nil {
			return err
		}
		p, err = repo.GetPupil(ctx, p.ID, ex)
		return err
	})
	if err != nil {
		return pupil.Pupil{}, err
	}
	return p, nil
}

func (repo pupilRepository) SaveResults(ctx context.Context, pupils []pupil.Pupil, exec ...core.DBExecutor) error {
	if len(pupils) == 0 {
		return nil
	}

	return repo.inTx(ctx, exec, func(ex core.DBExecutor) error {
		resultsQ := ex.Rebind(`UPDATE pupils SET total_marks = ?, total_aggregate = ?, division = ?, position = ?
			WHERE id = ?`)
		gradeQ := ex.Rebind("UPDATE marks SET grade = ?, points = ? WHERE pupil_id = ? AND subject = ?")

		for _, p := range pupils {
			res := p.Results
			if res == nil {
				return errors.Errorf("pupil %s has no results", p.ID)
			}
			if _, err := ex.ExecContext(ctx, resultsQ,
				res.TotalMarks, res.TotalAggregate, res.Division, res.Position, p.ID); err != nil {
				return errors.Wrapf(err, "saving results of pupil %s", p.ID)
			}
			// grades were re-derived by the calculator
			for _, m := range p.Marks.All() {
				if _, err := ex.ExecContext(ctx, gradeQ, m.Grade, m.Points, p.ID, m.Subject.String()); err != nil {
					return errors.Wrapf(err, "saving grades of pupil %s", p.ID)
				}
			}
		}
		return nil
	})
}

func (repo pupilRepository) DeletePupilsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int
	err := repo.inTx(ctx, exec, func(ex core.DBExecutor) error {
		q, args, err := sqlx.In("DELETE FROM marks WHERE pupil_id IN (?)", ids)
		if err != nil {
			return errors.Wrap(err, "building delete query")
		}
		if _, err = ex.ExecContext(ctx, ex.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "deleting marks")
		}

		q, args, err = sqlx.In("DELETE FROM pupils WHERE id IN (?)", ids)
		if err != nil {
			return errors.Wrap(err, "building delete query")
		}
		res, err := ex.ExecContext(ctx, ex.Rebind(q), args...)
		if err != nil {
			return errors.Wrap(err, "deleting pupils")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "counting deleted pupils")
		}
		deleted = int(n)
		return nil
	})
	return deleted, err
}
