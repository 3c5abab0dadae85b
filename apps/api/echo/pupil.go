package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/services/report"
)

const mimeApplicationPDF = "application/pdf"

type pupilApi struct {
	svc        pupil.Service
	reports    *reportsvc.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerPupilAPI(g *echo.Group, deps ServerDeps) {
	api := pupilApi{
		svc:        deps.PupilSvc,
		reports:    deps.ReportSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	pg := g.Group("/pupils")
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.DELETE("", api.destroyMultiple)

	// detail endpoints
	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.PUT("/marks", api.enterMarks)
	dg.GET("/report-card.pdf", api.reportCard)
}

// Handlers

func (api *pupilApi) query(ctx echo.Context) error {
	filter := new(pupil.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []pupil.Pupil{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	pupils, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying pupils")
	}
	if pupils == nil {
		pupils = []pupil.Pupil{}
	}
	return ctx.JSON(http.StatusOK, pupils)
}

func (api *pupilApi) create(ctx echo.Context) error {
	var data pupil.NewPupil
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPupil")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating pupil")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *pupilApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting pupil")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *pupilApi) update(ctx echo.Context) error {
	var data pupil.UpdatePupil
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePupil")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating pupil")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *pupilApi) enterMarks(ctx echo.Context) error {
	var data pupil.EnterMarks
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnterMarks")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.EnterMarks(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "entering marks")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *pupilApi) destroy(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting pupil")
	}
	if err = api.svc.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting pupil")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *pupilApi) destroyMultiple(ctx echo.Context) error {
	ids := ctx.QueryParams()["id"]
	if len(ids) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "at least one id is required"})
	}
	if err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting pupils")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *pupilApi) reportCard(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	p, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting pupil")
	}

	// positions are only meaningful against up to date class results
	class, err := api.svc.ClassResults(reqCtx, p.Class)
	if err != nil {
		return errors.Wrap(err, "getting class results")
	}
	for _, cp := range class {
		if cp.ID == p.ID {
			p = cp
			break
		}
	}

	data, err := api.reports.ReportCards([]pupil.Pupil{p}, len(class))
	if err != nil {
		return errors.Wrap(err, "rendering report card")
	}
	return ctx.Blob(http.StatusOK, mimeApplicationPDF, data)
}
