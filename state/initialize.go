package state

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"dtbm/misc"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}

// PrepareWorkDir creates scratch directory for unpacked sources once and
// registers it with the debug report, so it is archived and removed when
// report is closed. Without report caller is responsible for removal.
func (e *LocalEnv) PrepareWorkDir() (string, error) {
	if len(e.WorkDir) > 0 {
		return e.WorkDir, nil
	}
	dir, err := os.MkdirTemp("", misc.GetAppName()+"-")
	if err != nil {
		return "", fmt.Errorf("unable to create work directory: %w", err)
	}
	e.WorkDir = dir
	e.Rpt.Store("work", dir)
	if e.Log != nil {
		e.Log.Debug("Work directory created", zap.String("path", dir))
	}
	return dir, nil
}

// CleanWorkDir removes work directory unless debug report owns it.
func (e *LocalEnv) CleanWorkDir() error {
	if len(e.WorkDir) == 0 || e.Rpt != nil {
		return nil
	}
	dir := e.WorkDir
	e.WorkDir = ""
	return os.RemoveAll(dir)
}
