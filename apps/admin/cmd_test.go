package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matokeo/core"
	"github.com/trezcool/matokeo/core/pupil"
	"github.com/trezcool/matokeo/services/report"
	"github.com/trezcool/matokeo/storage/database/sqlx"
	"github.com/trezcool/matokeo/tests"
)

var pupilRepo pupil.Repository

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	pupilRepo = sqlxrepos.NewPupilRepository(db)

	// start CLI
	return &commandLine{
		db:      db,
		svc:     pupil.NewService(db, pupilRepo, nil, nopLogger{}, nil),
		reports: reportsvc.NewService(core.SchoolConfig{Name: "Test School"}, nil, nil),
		out:     new(bytes.Buffer),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func (tt cliTest) check(t *testing.T, cli *commandLine) {
	out := cli.out.(*bytes.Buffer)
	out.Reset()

	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		require.NoError(t, err)
	}
	if tt.wantOut != "" {
		assert.Equal(t, tt.wantOut, out.String())
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(_ context.Context, command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "term", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}

	noDB := &commandLine{out: new(bytes.Buffer)}
	cliTest{args: []string{"migrate", "up"}, wantErr: errNoDatabase}.check(t, noDB)
}

func Test_commandLine_calculate(t *testing.T) {
	cli := setup(t)
	a := testutil.CreatePupil(t, pupilRepo, "A", pupil.ClassP5, []int{60, 60, 60, 60})
	testutil.CreatePupil(t, pupilRepo, "B", pupil.ClassP5, []int{90, 90, 90, 90})
	testutil.CreatePupil(t, pupilRepo, "C", pupil.ClassP7, []int{50})

	tests := []cliTest{
		{name: "no args", args: []string{"calculate"}, wantErr: errHelp},
		{name: "bad flag", args: []string{"calculate", "-lol"}, wantErr: errHelp},
		{name: "unknown class", args: []string{"calculate", "-class", "P.9"}, wantErr: pupil.ErrUnknownClass},
		{name: "class", args: []string{"calculate", "-class", "P.5"}, wantOut: "P.5: 2 pupils ranked\n"},
		{name: "all", args: []string{"calculate", "-all"}, wantOut: "recalculated: P.7\n"},
		{name: "all (up to date)", args: []string{"calculate", "-all"}, wantOut: "all results are up to date\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}

	got, err := pupilRepo.GetPupil(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, got.Ranked())
	assert.Equal(t, 2, got.Results.Position)
}

func Test_commandLine_export(t *testing.T) {
	cli := setup(t)
	testutil.CreatePupil(t, pupilRepo, "A", pupil.ClassP6, []int{60, 60, 60, 60})

	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "cards.pdf")
	xlsxPath := filepath.Join(dir, "p6.xlsx")

	tests := []cliTest{
		{name: "no args", args: []string{"export"}, wantErr: errHelp},
		{name: "no out", args: []string{"export", "-class", "P.6"}, wantErr: errHelp},
		{name: "unknown format", args: []string{"export", "-class", "P.6", "-format", "csv", "-out", pdfPath}, wantErrStr: `unknown format "csv"`},
		{name: "empty class", args: []string{"export", "-class", "P.4", "-out", pdfPath}, wantErrStr: "P.4 has no pupils"},
		{name: "pdf", args: []string{"export", "-class", "P.6", "-out", pdfPath}, wantOut: "P.6: " + pdfPath + " written\n"},
		{name: "xlsx", args: []string{"export", "-class", "P.6", "-format", "xlsx", "-out", xlsxPath}, wantOut: "P.6: " + xlsxPath + " written\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}

	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	info, err := os.Stat(xlsxPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
