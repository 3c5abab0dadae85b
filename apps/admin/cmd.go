package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/services/report"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sqlx.DB // nil for the in-memory engine
	svc     pupil.Service
	reports *reportsvc.Service
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, version, ...)")
	_, _ = fmt.Fprintln(cli.out, "  calculate -class CLASS | -all - calculate class results")
	_, _ = fmt.Fprintln(cli.out, "  export -class CLASS -format pdf|xlsx -out FILE - export class report cards or result sheet")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	calculateCmd := flag.NewFlagSet("calculate", flag.ContinueOnError)
	calculateCmd.SetOutput(cli.out)
	calculateClass := calculateCmd.String("class", "", "The class to calculate, eg. P.5")
	calculateAll := calculateCmd.Bool("all", false, "Calculate every class with pupils missing results")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportCmd.SetOutput(cli.out)
	exportClass := exportCmd.String("class", "", "The class to export, eg. P.5")
	exportFormat := exportCmd.String("format", reportsvc.FormatPDF, "pdf (report cards) or xlsx (result sheet)")
	exportOut := exportCmd.String("out", "", "The output file")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "calculate":
		if err := calculateCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *calculateClass == "" && !*calculateAll {
			calculateCmd.Usage()
			return errHelp
		}
		if *calculateAll {
			return cli.calculateAll(ctx)
		}
		return cli.calculate(ctx, *calculateClass)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportClass == "" || *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, *exportClass, *exportFormat, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}
