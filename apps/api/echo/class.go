package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/services/report"
)

const mimeApplicationXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type classApi struct {
	svc     pupil.Service
	reports *reportsvc.Service
}

type calculatedResponse struct {
	Classes []string `json:"classes"`
}

func registerClassAPI(g *echo.Group, deps ServerDeps) {
	api := classApi{
		svc:     deps.PupilSvc,
		reports: deps.ReportSvc,
	}

	cg := g.Group("/classes")
	cg.GET("", api.overview)
	cg.POST("/calculate", api.calculateStale)

	dg := cg.Group("/:class")
	dg.POST("/results", api.calculate)
	dg.GET("/results", api.results)
	dg.GET("/summary", api.summary)
	dg.GET("/report-cards.pdf", api.reportCards)
	dg.GET("/report.xlsx", api.sheet)
}

// Handlers

func (api *classApi) overview(ctx echo.Context) error {
	overview, err := api.svc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting classes overview")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *classApi) calculateStale(ctx echo.Context) error {
	classes, err := api.svc.CalculateStale(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "calculating stale classes")
	}
	return ctx.JSON(http.StatusOK, calculatedResponse{Classes: classes})
}

func (api *classApi) calculate(ctx echo.Context) error {
	class, err := classParam(ctx)
	if err != nil {
		return err
	}
	pupils, err := api.svc.CalculateResults(ctx.Request().Context(), class)
	if err != nil {
		return errors.Wrap(err, "calculating results")
	}
	return ctx.JSON(http.StatusOK, pupils)
}

func (api *classApi) results(ctx echo.Context) error {
	class, err := classParam(ctx)
	if err != nil {
		return err
	}
	pupils, err := api.svc.ClassResults(ctx.Request().Context(), class)
	if err != nil {
		return errors.Wrap(err, "getting class results")
	}
	return ctx.JSON(http.StatusOK, pupils)
}

func (api *classApi) summary(ctx echo.Context) error {
	class, err := classParam(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), class)
	if err != nil {
		return errors.Wrap(err, "getting class summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *classApi) reportCards(ctx echo.Context) error {
	class, err := classParam(ctx)
	if err != nil {
		return err
	}
	pupils, err := api.svc.ClassResults(ctx.Request().Context(), class)
	if err != nil {
		return errors.Wrap(err, "getting class results")
	}
	if len(pupils) == 0 {
		return errHttpNotFound
	}

	data, err := api.reports.ReportCards(pupils, len(pupils))
	if err != nil {
		return errors.Wrap(err, "rendering report cards")
	}
	return ctx.Blob(http.StatusOK, mimeApplicationPDF, data)
}

func (api *classApi) sheet(ctx echo.Context) error {
	class, err := classParam(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	pupils, err := api.svc.ClassResults(reqCtx, class)
	if err != nil {
		return errors.Wrap(err, "getting class results")
	}

	data, err := api.reports.ClassSheet(pupil.Summarize(class, pupils), pupils)
	if err != nil {
		return errors.Wrap(err, "rendering class sheet")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "results-"+class+".xlsx"))
	return ctx.Blob(http.StatusOK, mimeApplicationXLSX, data)
}
