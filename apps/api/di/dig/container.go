// Package digcontainer wires the API process with a dig.Container.
package digcontainer

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/matokeo/apps/api/echo"
	"github.com/trezcool/matokeo/apps/shared"
	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/grading"
	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/services/logger"
	"github.com/trezcool/matokeo/services/metrics"
	"github.com/trezcool/matokeo/services/report"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	PupilSvc   pupil.Service
	ReportSvc  *reportsvc.Service
	Metrics    *metricsvc.Prometheus
	Validate   *validator.Validate
	Translator ut.Translator
}

type NewConfigFunc func() *core.Config

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) (*shared.Storage, error) {
	storage, err := shared.OpenStorage(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Error("setting up database", err)
		return nil, errors.Wrap(err, "setting up database")
	}
	return storage, nil
}

func newMetrics() (*metricsvc.Prometheus, error) {
	return metricsvc.NewPrometheus(nil)
}

func newPupilService(
	storage *shared.Storage,
	scale *grading.Scale,
	logger core.Logger,
	metrics *metricsvc.Prometheus,
) pupil.Service {
	return pupil.NewService(storage.TxDB(), storage.Repo, pupil.NewCalculator(scale), logger, metrics)
}

func newReportService(conf *core.Config, scale *grading.Scale, metrics *metricsvc.Prometheus) *reportsvc.Service {
	return reportsvc.NewService(conf.School, scale, metrics)
}

func newServer(p ServerParam) echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		PupilSvc:   p.PupilSvc,
		ReportSvc:  p.ReportSvc,
		Metrics:    p.Metrics.Handler(),
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig NewConfigFunc) (*dig.Container, error) {
	c := dig.New()

	providers := []struct {
		constructor interface{}
		opts        []dig.ProvideOption
	}{
		{constructor: newConfig},
		{constructor: newLogger},
		{constructor: newDBLogger, opts: []dig.ProvideOption{dig.Name("dbLogger")}},
		{constructor: newStorage},
		{constructor: shared.LoadScale},
		{constructor: newMetrics},
		{constructor: newPupilService},
		{constructor: newReportService},
		{constructor: shared.NewValidator},
		{constructor: newServer},
	}
	for _, p := range providers {
		if err := c.Provide(p.constructor, p.opts...); err != nil {
			return nil, errors.Wrap(err, "failed to provide dependency")
		}
	}
	return c, nil
}
