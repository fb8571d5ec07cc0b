package main

import (
	"io"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/fncraft/flux/internal/config"
	"github.com/fncraft/flux/internal/flog"
)

// Ctx bundles the per-invocation state every subcommand needs, the way
// the teacher's dep.Ctx bundles GOPATHs and loggers for cmd/dep's
// subcommands — generalized here to flux's layered Config plus a
// structured flog.Logger in place of dep's bare *log.Logger pair.
type Ctx struct {
	WorkingDir string
	Config     config.Config
	Log        *flog.Logger
	Out, Err   io.Writer
}

func newCtx(workingDir string, environ []string, out, errW io.Writer, verbose bool) (*Ctx, error) {
	cfg, err := config.Load(workingDir, runtime.NumCPU(), environ)
	if err != nil {
		return nil, err
	}
	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	return &Ctx{
		WorkingDir: workingDir,
		Config:     cfg,
		Log:        flog.New(errW, level),
		Out:        out,
		Err:        errW,
	}, nil
}
