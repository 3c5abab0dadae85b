package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/services/report"
)

func (cli *commandLine) calculate(ctx context.Context, class string) error {
	ranked, err := cli.svc.CalculateResults(ctx, class)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %d pupils ranked\n", class, len(ranked))
	return nil
}

func (cli *commandLine) calculateAll(ctx context.Context) error {
	classes, err := cli.svc.CalculateStale(ctx)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		_, _ = fmt.Fprintln(cli.out, "all results are up to date")
		return nil
	}
	_, _ = fmt.Fprintf(cli.out, "recalculated: %s\n", strings.Join(classes, ", "))
	return nil
}

func (cli *commandLine) export(ctx context.Context, class, format, out string) error {
	pupils, err := cli.svc.ClassResults(ctx, class)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case reportsvc.FormatPDF:
		if len(pupils) == 0 {
			return errors.Errorf("%s has no pupils", class)
		}
		data, err = cli.reports.ReportCards(pupils, len(pupils))
	case reportsvc.FormatXLSX:
		data, err = cli.reports.ClassSheet(pupil.Summarize(class, pupils), pupils)
	default:
		return errors.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}

	if err = os.WriteFile(out, data, 0o644); err != nil {
		return errors.Wrap(err, "writing export")
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %s written\n", class, out)
	return nil
}
