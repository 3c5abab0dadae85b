package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/matokeo/apps/shared"
	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/services/logger"
	"github.com/trezcool/matokeo/services/report"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	storage, err := shared.OpenStorage(context.Background(), conf)
	if err != nil {
		logger.Fatal("setting up database", err)
	}

	scale, err := shared.LoadScale(conf)
	if err != nil {
		logger.Fatal("loading grading scale", err)
	}

	// start CLI
	cli := commandLine{
		db:      storage.DB,
		svc:     pupil.NewService(storage.TxDB(), storage.Repo, pupil.NewCalculator(scale), logger, nil),
		reports: reportsvc.NewService(conf.School, scale, nil),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = storage.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
