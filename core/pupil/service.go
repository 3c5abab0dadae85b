package pupil

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/grading"
)

var (
	// OrderingFields are the fields pupils may be ordered by.
	OrderingFields = map[string]bool{
		"name":            true,
		"class":           true,
		"created_at":      true,
		"updated_at":      true,
		"total_marks":     true,
		"total_aggregate": true,
		"position":        true,
	}

	// errors
	ErrNotFound     = errors.New("pupil not found")
	ErrUnknownClass = errors.New("unknown class")
)

type (
	Repository interface {
		CreatePupil(ctx context.Context, p Pupil, exec ...core.DBExecutor) (Pupil, error)
		GetPupil(ctx context.Context, id string, exec ...core.DBExecutor) (Pupil, error)
		// QueryPupils applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Pupil.Name.
		QueryPupils(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Pupil, error)
		// ListByClass returns the pupils of class in creation order.
		ListByClass(ctx context.Context, class string, exec ...core.DBExecutor) ([]Pupil, error)
		// UpdatePupil saves name, class, marks and results (cleared when nil).
		UpdatePupil(ctx context.Context, p Pupil, exec ...core.DBExecutor) (Pupil, error)
		// SaveResults writes the results of ranked pupils.
		SaveResults(ctx context.Context, pupils []Pupil, exec ...core.DBExecutor) error
		DeletePupilsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Scale() *grading.Scale
		Create(ctx context.Context, np NewPupil) (Pupil, error)
		GetByID(ctx context.Context, id string) (Pupil, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Pupil, error)
		Update(ctx context.Context, id string, up UpdatePupil) (Pupil, error)
		EnterMarks(ctx context.Context, id string, em EnterMarks) (Pupil, error)
		Delete(ctx context.Context, ids ...string) error
		CalculateResults(ctx context.Context, class string) ([]Pupil, error)
		ClassResults(ctx context.Context, class string) ([]Pupil, error)
		CalculateStale(ctx context.Context) ([]string, error)
		Summary(ctx context.Context, class string) (ClassSummary, error)
		Overview(ctx context.Context) ([]ClassOverview, error)
	}

	service struct {
		db      core.DB // nil for in-memory storage
		repo    Repository
		calc    *Calculator
		logger  core.Logger
		metrics core.Metrics
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, calc *Calculator, logger core.Logger, metrics core.Metrics) Service {
	if calc == nil {
		calc = NewCalculator(nil)
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &service{
		db:      db,
		repo:    repo,
		calc:    calc,
		logger:  logger,
		metrics: metrics,
	}
}

// inTx runs fn in a DB transaction, or directly when there is no DB.
func (svc *service) inTx(ctx context.Context, fn func(exec ...core.DBExecutor) error) error {
	if svc.db == nil {
		return fn()
	}

	tx, err := svc.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			// results may be half written
			svc.logger.Error("rolling back transaction", rbErr)
			return core.NewShutdownError("rolling back transaction: " + rbErr.Error())
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func checkClass(class string) error {
	if !ValidClass(class) {
		return errors.Wrapf(ErrUnknownClass, "%q", class)
	}
	return nil
}

func (svc *service) Scale() *grading.Scale {
	return svc.calc.Scale()
}

func (svc *service) enter(p *Pupil, entries []MarkEntry) {
	for _, e := range entries {
		subject, err := ParseSubject(e.Subject)
		if err != nil || e.Marks == nil {
			continue
		}
		p.Marks.Set(svc.calc.Scale(), subject, ClampMarks(*e.Marks), e.TeacherName)
	}
}

func (svc *service) Create(ctx context.Context, np NewPupil) (Pupil, error) {
	now := time.Now().UTC()
	p := Pupil{
		ID:        uuid.New().String(),
		Name:      np.Name,
		Class:     np.Class,
		CreatedAt: now,
		UpdatedAt: now,
	}
	svc.enter(&p, np.Marks)

	var created Pupil
	err := svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		var err error
		created, err = svc.repo.CreatePupil(ctx, p, exec...)
		return err
	})
	if err != nil {
		return Pupil{}, errors.Wrap(err, "creating pupil")
	}
	return created, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Pupil, error) {
	return svc.repo.GetPupil(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Pupil, error) {
	valid := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if OrderingFields[ord.Field] {
			valid = append(valid, ord)
		}
	}
	return svc.repo.QueryPupils(ctx, filter, valid)
}

func (svc *service) Update(ctx context.Context, id string, up UpdatePupil) (Pupil, error) {
	var updated Pupil
	err := svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		p, err := svc.repo.GetPupil(ctx, id, exec...)
		if err != nil {
			return err
		}

		if up.Name != "" {
			p.Name = up.Name
		}
		oldClass, wasRanked := p.Class, p.Ranked()
		moved := up.Class != "" && up.Class != p.Class
		if moved {
			p.Class = up.Class
			p.Results = nil // ranked with the old class
		}
		p.UpdatedAt = time.Now().UTC()

		if updated, err = svc.repo.UpdatePupil(ctx, p, exec...); err != nil {
			return err
		}

		// the old class would keep a gap in its positions
		if moved && wasRanked {
			if _, err = svc.calculate(ctx, oldClass, exec...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Pupil{}, errors.Wrap(err, "updating pupil")
	}
	return updated, nil
}

// EnterMarks adds or replaces marks for a pupil. The pupil's results are cleared,
// which marks its class as needing calculation.
func (svc *service) EnterMarks(ctx context.Context, id string, em EnterMarks) (Pupil, error) {
	var updated Pupil
	err := svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		p, err := svc.repo.GetPupil(ctx, id, exec...)
		if err != nil {
			return err
		}

		svc.enter(&p, em.Marks)
		p.Results = nil
		p.UpdatedAt = time.Now().UTC()

		updated, err = svc.repo.UpdatePupil(ctx, p, exec...)
		return err
	})
	if err != nil {
		return Pupil{}, errors.Wrap(err, "entering marks")
	}
	return updated, nil
}

// Delete removes pupils. Classes that had results are recalculated so their positions stay contiguous.
func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	err := svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		ranked := make(map[string]bool)
		for _, id := range ids {
			p, err := svc.repo.GetPupil(ctx, id, exec...)
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if p.Ranked() {
				ranked[p.Class] = true
			}
		}

		if _, err := svc.repo.DeletePupilsByID(ctx, ids, exec...); err != nil {
			return err
		}

		for _, class := range Classes {
			if ranked[class] {
				if _, err := svc.calculate(ctx, class, exec...); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return errors.Wrap(err, "deleting pupils")
}

func (svc *service) calculate(ctx context.Context, class string, exec ...core.DBExecutor) ([]Pupil, error) {
	pupils, err := svc.repo.ListByClass(ctx, class, exec...)
	if err != nil {
		return nil, err
	}
	ranked := svc.calc.Calculate(pupils)
	if err = svc.repo.SaveResults(ctx, ranked, exec...); err != nil {
		return nil, err
	}
	return ranked, nil
}

// CalculateResults ranks all pupils of class and saves their results.
func (svc *service) CalculateResults(ctx context.Context, class string) ([]Pupil, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}

	start := time.Now()
	var ranked []Pupil
	err := svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		var err error
		ranked, err = svc.calculate(ctx, class, exec...)
		return err
	})
	svc.metrics.ObserveCalculation(class, len(ranked), time.Since(start), err)
	if err != nil {
		return nil, errors.Wrapf(err, "calculating results for %s", class)
	}

	svc.logger.Info("results calculated", map[string]interface{}{
		"class":  class,
		"pupils": len(ranked),
		"took":   time.Since(start).String(),
	})
	return ranked, nil
}

// needsCalculation reports whether any pupil of the class is unranked.
func needsCalculation(pupils []Pupil) bool {
	for _, p := range pupils {
		if !p.Ranked() {
			return true
		}
	}
	return false
}

// ClassResults returns the ranked pupils of class, calculating first when results are stale.
func (svc *service) ClassResults(ctx context.Context, class string) ([]Pupil, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}

	pupils, err := svc.repo.ListByClass(ctx, class)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", class)
	}
	if needsCalculation(pupils) {
		return svc.CalculateResults(ctx, class)
	}

	// already ranked: order by position, keeping creation order among ties
	return sortByPosition(pupils), nil
}

// CalculateStale recalculates every class where a pupil with marks has no results.
func (svc *service) CalculateStale(ctx context.Context) ([]string, error) {
	recalculated := make([]string, 0, len(Classes))
	for _, class := range Classes {
		pupils, err := svc.repo.ListByClass(ctx, class)
		if err != nil {
			return recalculated, errors.Wrapf(err, "listing %s", class)
		}

		var stale bool
		for _, p := range pupils {
			if !p.Ranked() && p.Marks.Len() > 0 {
				stale = true
				break
			}
		}
		if !stale {
			continue
		}

		if _, err = svc.CalculateResults(ctx, class); err != nil {
			return recalculated, err
		}
		recalculated = append(recalculated, class)
	}
	return recalculated, nil
}

func (svc *service) Summary(ctx context.Context, class string) (ClassSummary, error) {
	pupils, err := svc.ClassResults(ctx, class)
	if err != nil {
		return ClassSummary{}, err
	}
	return Summarize(class, pupils), nil
}

func (svc *service) Overview(ctx context.Context) ([]ClassOverview, error) {
	overview := make([]ClassOverview, 0, len(Classes))
	for _, class := range Classes {
		pupils, err := svc.repo.ListByClass(ctx, class)
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", class)
		}

		sum := Summarize(class, pupils)
		overview = append(overview, ClassOverview{
			Class:          class,
			TotalPupils:    sum.TotalPupils,
			WithResults:    sum.WithResults,
			NeedsCalculate: len(pupils) > 0 && needsCalculation(pupils),
			DivisionCounts: sum.DivisionCounts,
		})
	}
	return overview, nil
}
