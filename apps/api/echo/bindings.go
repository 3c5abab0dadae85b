package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/pupil"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// classParam reads the :class path param. "P.5", "p.5" and "P5" all name class P.5.
func classParam(ctx echo.Context) (string, error) {
	class := strings.ToUpper(strings.TrimSpace(ctx.Param("class")))
	if len(class) == 2 && class[0] == 'P' {
		class = class[:1] + "." + class[1:]
	}
	if !pupil.ValidClass(class) {
		return "", errors.Wrapf(pupil.ErrUnknownClass, "%q", ctx.Param("class"))
	}
	return class, nil
}
